package selections

type AddRoomRequest struct {
	Room        RoomOption      `json:"room"`
	Reservation ReservationInfo `json:"reservation"`
}

type AddRoomFromCustomizationRequest struct {
	Customizations []Customization `json:"customizations" binding:"required,min=1,dive"`
	Reservation    ReservationInfo `json:"reservation"`
}

type UpdateCustomizationsRequest struct {
	Customizations []Customization `json:"customizations" binding:"dive"`
	Total          float64         `json:"total" binding:"gte=0"`
}

type AddExtraRequest struct {
	Offer OfferOption `json:"offer"`
}

type BatchRequest struct {
	Operations []Operation `json:"operations" binding:"required,min=1,dive"`
}
