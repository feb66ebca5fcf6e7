package roles

import "fmt"

// AuthorizationError is returned when an account attempts a privileged
// operation without the required role. No state changes before the check.
type AuthorizationError struct {
	AccountID string
	Operation string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("account %s is not authorized to %s", e.AccountID, e.Operation)
}

func RequireModerator(d Directory, accountID, operation string) error {
	if !d.IsModerator(accountID) {
		return &AuthorizationError{AccountID: accountID, Operation: operation}
	}
	return nil
}

func RequireAdmin(d Directory, accountID, operation string) error {
	if !d.IsAdmin(accountID) {
		return &AuthorizationError{AccountID: accountID, Operation: operation}
	}
	return nil
}
