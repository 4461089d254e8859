package booking

import (
	"sort"

	"github.com/salonbook/salonbook/services/appointment-service/internal/model"
)

// SortForListing orders appointments by status rank, then most recent DateTime first.
// Appointments with equal keys keep their input order.
func SortForListing(appts []model.Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		ri, rj := appts[i].Status.Rank(), appts[j].Status.Rank()
		if ri != rj {
			return ri < rj
		}
		return appts[i].DateTime.After(appts[j].DateTime)
	})
}
