package flow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/docuhub/portal/internal/api"
)

// State is the active step. It is one of Registering, SelectingCompanies, VerifyingOtp or
// Done.
type State interface {
	state()
}

// Mode selects which form the Registering step shows.
type Mode int

const (
	ModeRegister Mode = iota
	ModeLogin
)

func (m Mode) String() string {
	if m == ModeLogin {
		return "login"
	}
	return "register"
}

// Purpose is what an OTP confirms.
type Purpose int

const (
	PurposeRegistration Purpose = iota
	PurposeLogin
)

func (p Purpose) String() string {
	if p == PurposeLogin {
		return "login"
	}
	return "registration"
}

// Registering is the entry step: the sign-up or login form, with an optional notice.
type Registering struct {
	Mode   Mode
	Notice string
}

// SelectingCompanies offers the approved companies after a sign-up.
type SelectingCompanies struct {
	Email      string
	Candidates []api.Company
}

// VerifyingOtp waits for the code sent to Email.
type VerifyingOtp struct {
	Email             string
	Purpose           Purpose
	PendingCompanyIDs []string
}

// Done is the logged-in terminal step. Warning is set when some company associations
// failed.
type Done struct {
	Warning string
	Partial *PartialFailure
}

func (Registering) state()        {}
func (SelectingCompanies) state() {}
func (VerifyingOtp) state()       {}
func (Done) state()               {}

// PartialFailure records company associations that failed after a verified sign-up. The
// account stays usable and the successful associations are kept.
type PartialFailure struct {
	Total  int
	Failed map[string]error
}

func (e *PartialFailure) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return fmt.Sprintf("%d of %d company associations failed (%s)", len(e.Failed), e.Total, strings.Join(ids, ", "))
}

// Warning is the soft message shown on Done.
func (e *PartialFailure) Warning() string {
	return fmt.Sprintf("%d of %d company associations failed; you can retry them from your companies page.", len(e.Failed), e.Total)
}
