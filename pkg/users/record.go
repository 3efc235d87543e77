package users

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Response is the body of a listing response.
// Records stay raw so one bad record cannot fail the whole page.
type Response struct {
	Results []json.RawMessage `json:"results"`
	Info    *Info       `json:"info,omitempty"`

	// Error is set by the source instead of results when it rejects a request.
	Error string `json:"error,omitempty"`
}

// Info echoes the request parameters the source used.
type Info struct {
	Seed    string `json:"seed"`
	Results int    `json:"results"`
	Page    int    `json:"page"`
	Version string `json:"version"`
}

// RawRecord is one record as delivered by the source. Nested objects are
// pointers so absent fields can be told apart from empty ones.
type RawRecord struct {
	Gender   string       `json:"gender"`
	Name     *RawName     `json:"name,omitempty"`
	Email    string       `json:"email"`
	Login    *RawLogin    `json:"login,omitempty"`
	Dob      *RawDob      `json:"dob,omitempty"`
	Location *RawLocation `json:"location,omitempty"`
	Picture  *RawPicture  `json:"picture,omitempty"`
}

// RawName holds the name parts.
type RawName struct {
	Title string `json:"title"`
	First string `json:"first"`
	Last  string `json:"last"`
}

// RawLogin holds the stable source identity.
type RawLogin struct {
	UUID     string `json:"uuid"`
	Username string `json:"username"`
}

// RawDob holds the date of birth.
type RawDob struct {
	Date string `json:"date"`
	Age  int    `json:"age"`
}

// RawLocation holds the subset of location fields we use.
type RawLocation struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// RawPicture holds picture URLs in several sizes.
type RawPicture struct {
	Large     string `json:"large"`
	Medium    string `json:"medium"`
	Thumbnail string `json:"thumbnail"`
}

// MapRecord converts a raw record into a User. It never fails: missing
// fields become empty values and are only logged.
func MapRecord(raw RawRecord, pageNumber int) User {
	u := User{
		Gender: raw.Gender,
		Email:  raw.Email,
	}

	sourceID := ""
	if raw.Login != nil {
		sourceID = raw.Login.UUID
	}
	if sourceID == "" {
		sourceID = uuid.NewString()
		log.Warn().
			Int("page", pageNumber).
			Str("fallback_id", sourceID).
			Msg("Record without login.uuid, using generated id")
	}
	u.ID = sourceID + "-" + strconv.Itoa(pageNumber)

	if raw.Name != nil {
		u.Name = strings.TrimSpace(raw.Name.First + " " + raw.Name.Last)
	}
	if raw.Dob != nil {
		u.Age = raw.Dob.Age
	}
	if raw.Location != nil {
		u.City = raw.Location.City
		u.Country = raw.Location.Country
	}
	if raw.Picture != nil {
		u.PictureURL = raw.Picture.Large
	}

	if raw.Name == nil || raw.Dob == nil || raw.Location == nil || raw.Picture == nil {
		log.Debug().
			Str("id", u.ID).
			Int("page", pageNumber).
			Msg("Record has missing fields")
	}

	return u
}

// DecodeRecord decodes one record. Fields of the wrong type are left empty
// and the rest of the record is kept; the failure is only logged.
func DecodeRecord(data json.RawMessage, pageNumber int) RawRecord {
	var raw RawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Warn().
			Err(err).
			Int("page", pageNumber).
			Msg("Record does not match the expected shape, keeping decodable fields")
	}
	return raw
}

// MapPage decodes and maps all records of a response for the given page number.
func MapPage(records []json.RawMessage, pageNumber int, hasMore bool) *Page {
	page := &Page{
		Number:  pageNumber,
		Users:   make([]User, 0, len(records)),
		HasMore: hasMore,
	}
	for _, data := range records {
		page.Users = append(page.Users, MapRecord(DecodeRecord(data, pageNumber), pageNumber))
	}
	return page
}
