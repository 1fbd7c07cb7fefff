package db

import "context"

const getAuthor = `-- name: GetAuthor :one
SELECT id, name, bio FROM authors
WHERE id = $1 LIMIT 1
`

func (q *Queries) GetAuthor(ctx context.Context, id int64) (Author, error) {
	var i Author
	return i, nil
}

func (q *Queries) ListBooksByAuthor(ctx context.Context, name string) ([]Book, error) {
	return nil, nil
}

func (q *Queries) DeleteBook(ctx context.Context, id int64) error {
	return nil
}
