package models

import "strings"

// BookingType distinguishes the two payload variants we can execute.
type BookingType string

const (
	BookingTypeFlight BookingType = "flight"
	BookingTypeHotel  BookingType = "hotel"
)

// IsValid reports whether the booking type is one we know how to execute.
func (t BookingType) IsValid() bool {
	return t == BookingTypeFlight || t == BookingTypeHotel
}

// Traveler is one passenger on a flight booking. Identity fields are
// required before execution - an incomplete traveler is a precondition
// violation, not a recoverable runtime state.
type Traveler struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	PassportNumber string `json:"passport_number,omitempty"`
	Nationality    string `json:"nationality,omitempty"`
	DateOfBirth    string `json:"date_of_birth,omitempty"`
}

// Complete reports whether the traveler carries the required identity fields.
func (t Traveler) Complete() bool {
	return strings.TrimSpace(t.FirstName) != "" && strings.TrimSpace(t.LastName) != ""
}

// HotelGuest is one guest on a hotel booking.
type HotelGuest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsLead    bool   `json:"is_lead"`
}

// FlightDetails is the flight variant of the booking payload.
type FlightDetails struct {
	OfferID      string     `json:"offer_id"`
	Origin       string     `json:"origin"`
	Destination  string     `json:"destination"`
	DepartureDay string     `json:"departure_day"`
	Travelers    []Traveler `json:"travelers"`
}

// HotelDetails is the hotel variant of the booking payload.
type HotelDetails struct {
	HotelID     string       `json:"hotel_id"`
	RoomCode    string       `json:"room_code"`
	CheckInDay  string       `json:"check_in_day"`
	CheckOutDay string       `json:"check_out_day"`
	Guests      []HotelGuest `json:"guests"`
	Nationality string       `json:"nationality,omitempty"`
}

// BookingPayload is a tagged union over the flight and hotel variants.
// Exactly one of Flight/Hotel is set, matching Type; the execution
// dispatcher handles the variants exhaustively.
type BookingPayload struct {
	Type         BookingType    `json:"type"`
	Flight       *FlightDetails `json:"flight,omitempty"`
	Hotel        *HotelDetails  `json:"hotel,omitempty"`
	ContactEmail string         `json:"contact_email,omitempty"`
	ContactPhone string         `json:"contact_phone,omitempty"`
}

// ContactAddress returns the deliverable contact for notifications,
// preferring phone over email, or "" when neither is present.
func (p *BookingPayload) ContactAddress() string {
	if strings.TrimSpace(p.ContactPhone) != "" {
		return strings.TrimSpace(p.ContactPhone)
	}
	return strings.TrimSpace(p.ContactEmail)
}
