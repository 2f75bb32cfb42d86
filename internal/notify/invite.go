package notify

import (
	ical "github.com/arran4/golang-ical"

	"hakobite/internal/models"
)

// Invite renders the booking as an iCalendar REQUEST the customer can add
// to their own calendar.
func Invite(r models.BookingRecord, organizerEmail, organizerName string) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodRequest)
	cal.SetProductId("-//hakobite//booking//EN")

	ev := cal.AddEvent(r.EventID + "@hakobite")
	ev.SetDtStampTime(r.CreatedAt)
	ev.SetStartAt(r.Interval.Start)
	ev.SetEndAt(r.Interval.End)
	ev.SetSummary(r.Summary)
	ev.SetDescription(r.Transcript)
	if r.Request.PickupLocation != "" {
		ev.SetLocation(r.Request.PickupLocation)
	}
	if organizerEmail != "" {
		ev.SetOrganizer("mailto:"+organizerEmail, ical.WithCN(organizerName))
	}
	if r.Request.Email != "" {
		ev.AddAttendee("mailto:"+r.Request.Email, ical.ParticipationStatusAccepted, ical.WithCN(r.Request.Name))
	}
	return cal.Serialize()
}
