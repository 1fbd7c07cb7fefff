package db

type Event struct {
	ID      int64
	Kind    string
	Payload []byte
}
