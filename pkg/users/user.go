// Package users defines the user record domain model and the mapping from
// the remote paged source's wire format.
package users

// User is a single user record as presented to consumers.
// Values are never mutated after MapRecord builds them.
type User struct {
	// ID is the source UUID qualified with the page number ("<uuid>-<page>")
	// so a record repeated on two pages never collides inside one entry.
	ID         string `json:"id"`
	Name       string `json:"name"`
	Age        int    `json:"age"`
	Gender     string `json:"gender"`
	Email      string `json:"email"`
	City       string `json:"city"`
	Country    string `json:"country"`
	PictureURL string `json:"picture_url"`
}

// Page is one page of users.
type Page struct {
	// Number is the 1-based page number.
	Number int `json:"number"`

	// Users in source order.
	Users []User `json:"users"`

	// HasMore reports whether a subsequent page is known to exist.
	HasMore bool `json:"has_more"`
}

// Len returns the number of users on the page.
func (p *Page) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Users)
}
