package core

type OrderParams struct {
	Port          int
	MaxConcurrent int
	Rate          float64
	Burst         int
}

const (
	// in seconds for db response
	WaitTime = 15

	MinItems = 1
	MaxItems = 20

	MinItemQuantity = 1
	MaxItemQuantity = 50

	MinDeliveryAddressLen = 10
	MaxDeliveryAddressLen = 200

	MaxTipCents = 10000
	MaxNotesLen = 500

	MinMenuNameLen    = 1
	MaxMenuNameLen    = 80
	MaxMenuPriceCents = 100000
	MaxDescriptionLen = 500
)

var AllowedTypes = map[string]bool{
	"delivery": true,
	"takeout":  true,
}
