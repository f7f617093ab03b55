package session

// Owner identifies whose storefront state is active: a specific account or
// the anonymous shopper.
type Owner struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// Anonymous is the owner before anyone logs in.
var Anonymous = Owner{}

func (o Owner) Authenticated() bool {
	return o.UserID != ""
}

// Same reports whether two owners are the same identity. Display fields do
// not participate; only the account id does.
func (o Owner) Same(other Owner) bool {
	return o.UserID == other.UserID
}
