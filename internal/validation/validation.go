// Package validation checks registration input. Rules run in a fixed order
// and the first failing rule decides the reason.
package validation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rohits-web03/vidtube/internal/apperror"
)

type Reason int

const (
	ReasonMissingFields Reason = iota + 1
	ReasonInvalidEmail
	ReasonUsernameFormat
	ReasonConsecutivePunctuation
	ReasonEdgePunctuation
	ReasonAlreadyExists
	ReasonPasswordTooLong
)

// MaxPasswordBytes is the longest password bcrypt can hash.
const MaxPasswordBytes = 72

var reasonMessages = map[Reason]string{
	ReasonMissingFields:          "All fields are required",
	ReasonInvalidEmail:           "Invalid email",
	ReasonUsernameFormat:         "Username must be 3-10 characters long and can only contain letters, numbers, dots, and underscores",
	ReasonConsecutivePunctuation: "Username cannot contain consecutive dots or underscores",
	ReasonEdgePunctuation:        "Username cannot start or end with a dot or underscore",
	ReasonAlreadyExists:          "User with the same email or username already exists",
	ReasonPasswordTooLong:        "Password must not exceed 72 bytes",
}

func (r Reason) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return fmt.Sprintf("validation reason %d", int(r))
}

// Failure is the typed result of a failed rule.
type Failure struct {
	Reason Reason
}

func (f *Failure) Error() string {
	return f.Reason.Message()
}

// Registration is the raw registration input.
type Registration struct {
	Username string
	Email    string
	Password string
	FullName string
}

// Normalize trims every field and lower-cases the identifiers the way they
// are stored. The password is left untouched apart from the emptiness check.
func (r Registration) Normalize() Registration {
	return Registration{
		Username: strings.ToLower(strings.TrimSpace(r.Username)),
		Email:    strings.ToLower(strings.TrimSpace(r.Email)),
		Password: r.Password,
		FullName: strings.TrimSpace(r.FullName),
	}
}

var (
	emailPattern    = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._]{3,10}$`)
)

type rule func(Registration) bool

// rules are evaluated in order; each returns true when the input passes.
var rules = []struct {
	reason Reason
	check  rule
}{
	{ReasonMissingFields, func(r Registration) bool {
		for _, f := range []string{r.Username, r.Email, r.Password, r.FullName} {
			if strings.TrimSpace(f) == "" {
				return false
			}
		}
		return true
	}},
	{ReasonPasswordTooLong, func(r Registration) bool {
		return len(r.Password) <= MaxPasswordBytes
	}},
	{ReasonInvalidEmail, func(r Registration) bool {
		return emailPattern.MatchString(strings.TrimSpace(r.Email))
	}},
	{ReasonUsernameFormat, func(r Registration) bool {
		return usernamePattern.MatchString(strings.TrimSpace(r.Username))
	}},
	{ReasonConsecutivePunctuation, func(r Registration) bool {
		u := strings.TrimSpace(r.Username)
		return !strings.Contains(u, "..") && !strings.Contains(u, "__")
	}},
	{ReasonEdgePunctuation, func(r Registration) bool {
		u := strings.TrimSpace(r.Username)
		return !strings.HasPrefix(u, ".") && !strings.HasPrefix(u, "_") &&
			!strings.HasSuffix(u, ".") && !strings.HasSuffix(u, "_")
	}},
}

// CheckFormat runs the local rules only. It has no side effects.
func CheckFormat(r Registration) *Failure {
	for _, rl := range rules {
		if !rl.check(r) {
			return &Failure{Reason: rl.reason}
		}
	}
	return nil
}

// ExistenceChecker looks a user up by username OR email in one query.
type ExistenceChecker interface {
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
}

type Validator struct {
	users ExistenceChecker
}

func NewValidator(users ExistenceChecker) *Validator {
	return &Validator{users: users}
}

// Validate runs the format rules and then the uniqueness lookup against the
// normalized identifiers. Failures are apperror validation errors wrapping a
// *Failure; a failed lookup is a persistence error.
func (v *Validator) Validate(ctx context.Context, r Registration) error {
	if f := CheckFormat(r); f != nil {
		return apperror.New(apperror.Validation, f.Error(), f)
	}

	n := r.Normalize()
	exists, err := v.users.ExistsByUsernameOrEmail(ctx, n.Username, n.Email)
	if err != nil {
		return apperror.NewPersistence("Failed to check existing users", err)
	}
	if exists {
		f := &Failure{Reason: ReasonAlreadyExists}
		return apperror.New(apperror.Validation, f.Error(), f)
	}
	return nil
}
