package db

type Author struct {
	ID   int64
	Name string
	Bio  *string
}

type Book struct {
	ID       int64
	AuthorID int64
	Title    string
}
