package booking

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/speps/go-hashids/v2"

	"hakobite/internal/models"
	"hakobite/internal/slot"
)

const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// References turns booking IDs into short codes customers can read over the phone.
type References struct {
	h *hashids.HashID
}

func NewReferences(salt string, minLength int) (*References, error) {
	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = minLength
	hd.Alphabet = referenceAlphabet
	h, err := hashids.NewWithData(hd)
	if err != nil {
		return nil, fmt.Errorf("init reference codes: %w", err)
	}
	return &References{h: h}, nil
}

// Code derives the reference for a booking from its ID and creation time.
func (r *References) Code(id uuid.UUID, created time.Time) (string, error) {
	n := int64(binary.BigEndian.Uint32(id[:4]))
	return r.h.EncodeInt64([]int64{created.Unix() % 100000, n})
}

func summary(req models.BookingRequest) string {
	if req.Service == "" {
		return "[Booking] " + req.Name
	}
	return fmt.Sprintf("[Booking] %s - %s", req.Name, req.Service)
}

func bufferSummary(req models.BookingRequest) string {
	return "[Travel] " + req.Name
}

// transcript is the human-readable booking record stored as the event
// description and repeated in the confirmation email.
func transcript(req models.BookingRequest, iv slot.Interval, reference string) string {
	var b strings.Builder
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}

	line("Reference", reference)
	line("Date", iv.Start.Format("2006-01-02 (Mon) 15:04")+"-"+iv.End.Format("15:04"))
	line("Service", req.Service)
	line("Name", req.Name)
	line("Phone", req.Phone)
	line("Email", req.Email)
	line("Pickup", req.PickupLocation)
	line("Destination", req.Destination)
	line("Wheelchair", req.Wheelchair)
	line("Care", req.Care)
	line("Passengers", req.Passengers)
	if req.SameAsBooker != nil {
		if *req.SameAsBooker {
			line("Passenger", "same as booker")
		} else {
			line("Passenger", "different from booker (see note)")
		}
	}
	line("Note", req.Note)
	return b.String()
}
