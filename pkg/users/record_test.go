package users

import (
	"encoding/json"
	"strings"
	"testing"
)

const sampleResponse = `{
  "results": [
    {
      "gender": "female",
      "name": {"title": "Ms", "first": "Ada", "last": "Lovelace"},
      "location": {"street": {"number": 1, "name": "Main"}, "city": "London", "state": "Greater London", "country": "United Kingdom", "postcode": 12345},
      "email": "ada@example.com",
      "login": {"uuid": "7a1c", "username": "ada"},
      "dob": {"date": "1815-12-10T00:00:00.000Z", "age": 36},
      "picture": {"large": "https://example.com/l.jpg", "medium": "https://example.com/m.jpg", "thumbnail": "https://example.com/t.jpg"}
    }
  ],
  "info": {"seed": "userapp", "results": 1, "page": 3, "version": "1.4"}
}`

func TestMapRecord(t *testing.T) {
	var resp Response
	if err := json.Unmarshal([]byte(sampleResponse), &resp); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(resp.Results))
	}

	u := MapRecord(DecodeRecord(resp.Results[0], 3), 3)

	want := User{
		ID:         "7a1c-3",
		Name:       "Ada Lovelace",
		Age:        36,
		Gender:     "female",
		Email:      "ada@example.com",
		City:       "London",
		Country:    "United Kingdom",
		PictureURL: "https://example.com/l.jpg",
	}
	if u != want {
		t.Errorf("MapRecord() = %+v, want %+v", u, want)
	}
}

func TestMapRecord_PageQualifiedID(t *testing.T) {
	raw := RawRecord{Login: &RawLogin{UUID: "same"}}

	first := MapRecord(raw, 1)
	second := MapRecord(raw, 2)

	if first.ID == second.ID {
		t.Errorf("Same source record on two pages must get distinct ids, both got %q", first.ID)
	}
	if first.ID != "same-1" || second.ID != "same-2" {
		t.Errorf("Unexpected ids: %q, %q", first.ID, second.ID)
	}
}

func TestMapRecord_MissingFields(t *testing.T) {
	u := MapRecord(RawRecord{}, 4)

	if !strings.HasSuffix(u.ID, "-4") {
		t.Errorf("ID = %q, want page suffix -4", u.ID)
	}
	if len(u.ID) <= len("-4") {
		t.Errorf("ID = %q, want generated source id", u.ID)
	}
	if u.Name != "" || u.Age != 0 || u.City != "" || u.Country != "" || u.PictureURL != "" {
		t.Errorf("Missing fields should map to empty values, got %+v", u)
	}
}

func TestMapRecord_MissingUUIDStaysUnique(t *testing.T) {
	a := MapRecord(RawRecord{Login: &RawLogin{}}, 1)
	b := MapRecord(RawRecord{Login: &RawLogin{}}, 1)

	if a.ID == b.ID {
		t.Errorf("Records without uuid must not collide, both got %q", a.ID)
	}
}

func TestMapPage(t *testing.T) {
	records := []json.RawMessage{
		json.RawMessage(`{"login": {"uuid": "a"}}`),
		json.RawMessage(`{"login": {"uuid": "b"}}`),
		json.RawMessage(`{"login": {"uuid": "c"}}`),
	}

	page := MapPage(records, 2, true)

	if page.Number != 2 {
		t.Errorf("Number = %d, want 2", page.Number)
	}
	if !page.HasMore {
		t.Error("HasMore should be true")
	}
	if page.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", page.Len())
	}
	for i, id := range []string{"a-2", "b-2", "c-2"} {
		if page.Users[i].ID != id {
			t.Errorf("Users[%d].ID = %q, want %q", i, page.Users[i].ID, id)
		}
	}
}

func TestMapPage_MalformedRecord(t *testing.T) {
	records := []json.RawMessage{
		json.RawMessage(`{"login": {"uuid": "good"}, "dob": {"age": 30}, "email": "good@example.com"}`),
		json.RawMessage(`{"login": {"uuid": "bad"}, "dob": {"age": "unknown"}, "email": "bad@example.com"}`),
		json.RawMessage(`"not an object"`),
	}

	page := MapPage(records, 1, true)

	if page.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", page.Len())
	}

	good := page.Users[0]
	if good.ID != "good-1" || good.Age != 30 || good.Email != "good@example.com" {
		t.Errorf("Valid record changed: %+v", good)
	}

	// The wrongly typed field is empty, the rest of the record survives.
	bad := page.Users[1]
	if bad.ID != "bad-1" || bad.Email != "bad@example.com" {
		t.Errorf("Decodable fields lost: %+v", bad)
	}
	if bad.Age != 0 {
		t.Errorf("Age = %d, want 0", bad.Age)
	}

	// A record that is not an object still yields a user with a unique id.
	if page.Users[2].ID == "" || page.Users[2].ID == page.Users[1].ID {
		t.Errorf("Unexpected id for non-object record: %q", page.Users[2].ID)
	}
}

func TestPage_LenNil(t *testing.T) {
	var p *Page
	if p.Len() != 0 {
		t.Errorf("nil page Len() = %d, want 0", p.Len())
	}
}
