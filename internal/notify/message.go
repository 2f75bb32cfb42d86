package notify

import (
	"fmt"
	"strings"

	"hakobite/internal/models"
)

const timeLayout = "2006-01-02 (Mon) 15:04"

// operatorText is the short plain-text alert sent to the operator.
func operatorText(r models.BookingRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New booking %s\n", r.Reference)
	fmt.Fprintf(&b, "%s-%s\n", r.Interval.Start.Format(timeLayout), r.Interval.End.Format("15:04"))
	fmt.Fprintf(&b, "%s / %s\n", r.Request.Name, r.Request.Phone)
	if r.Request.Service != "" {
		fmt.Fprintf(&b, "%s\n", r.Request.Service)
	}
	fmt.Fprintf(&b, "Pickup: %s", r.Request.PickupLocation)
	return b.String()
}

// confirmationBody is the customer confirmation email.
func confirmationBody(r models.BookingRecord, signature string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s,\n\n", r.Request.Name)
	b.WriteString("Thank you for booking with us. We have received the following booking.\n\n")
	b.WriteString("--------------------------------------------------\n")
	if r.Reference != "" {
		fmt.Fprintf(&b, "Reference: %s\n", r.Reference)
	}
	b.WriteString(strings.TrimSpace(r.Transcript))
	b.WriteString("\n--------------------------------------------------\n\n")
	b.WriteString("If you have any questions, please contact us.\n")
	if signature != "" {
		fmt.Fprintf(&b, "\n%s\n", signature)
	}
	return b.String()
}
