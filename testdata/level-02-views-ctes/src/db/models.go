package db

type OrderStatus string

const (
	OrderStatusOpen    OrderStatus = "open"
	OrderStatusShipped OrderStatus = "shipped"
)

type Customer struct {
	ID   int64
	Name string
}

type OpenOrder struct {
	ID         int64
	CustomerID int64
	Status     OrderStatus
}

type Order struct {
	ID         int64
	CustomerID int64
	Status     OrderStatus
}
