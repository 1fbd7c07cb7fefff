package db

import "context"

type CreateEventParams struct {
	Kind    string
	Payload []byte
}

func (q *Queries) CreateEvent(ctx context.Context, arg CreateEventParams) (Event, error) {
	return Event{}, nil
}
