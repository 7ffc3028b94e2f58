package rules

import (
	"time"

	"github.com/google/uuid"
	"gopkg.in/inf.v0"
)

type Color int

const (
	Red Color = iota
	Green
	Blue
)

func (Color) EnumNames() []string { return []string{"Red", "Green", "Blue"} }

type Address struct {
	City string
	Zip  *string
}

type Person struct {
	ID       uuid.UUID
	Name     string
	Nick     *string
	Age      int
	Rank     int16
	Score    *int
	Height   float64
	Weight   float32
	Balance  *inf.Dec
	Born     time.Time
	Active   bool
	Favorite Color
	Second   *Color
	Tags     []string
	Address  *Address
	Secret   string `search:"-"`
	Email    string `json:"mail"`
	hidden   string
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func colorPtr(c Color) *Color { return &c }

var (
	idDarkwing = uuid.MustParse("0b9b3c1e-5d6f-4a8e-9c1d-2e3f4a5b6c7d")
	idLaunch   = uuid.MustParse("1c2d3e4f-5a6b-4c7d-8e9f-0a1b2c3d4e5f")
)

// people returns a fresh copy of the test dataset.
func people() []Person {
	return []Person{
		{
			ID: idDarkwing, Name: "Darkwing Duck", Nick: strPtr("DW"), Age: 35, Rank: 1,
			Score: intPtr(90), Height: 1.2, Weight: 30.5, Balance: inf.NewDec(10050, 2),
			Born: time.Date(1991, 9, 8, 0, 0, 0, 0, time.UTC), Active: true,
			Favorite: Blue, Second: colorPtr(Green), Tags: []string{"hero", "Duck"},
			Address: &Address{City: "St. Canard", Zip: strPtr("12345")},
			Email:   "dw@canard.example",
		},
		{
			ID: idLaunch, Name: "Launchpad McQuack", Age: 30, Rank: 2,
			Height: 1.9, Weight: 90, Born: time.Date(1987, 1, 1, 0, 0, 0, 0, time.UTC),
			Favorite: Red, Tags: []string{"pilot"},
			Email: "lp@quack.example",
		},
		{
			ID: uuid.New(), Name: "Gosalyn Mallard", Nick: strPtr("Gos"), Age: 9, Rank: 3,
			Score: intPtr(75), Height: 1.0, Weight: 25, Balance: inf.NewDec(5, 0),
			Born: time.Date(2000, 2, 29, 12, 0, 0, 0, time.UTC), Active: true,
			Favorite: Green, Tags: []string{"kid", "hero"},
			Address: &Address{City: "St. Canard"},
			Email:   "gos@canard.example",
		},
		{
			ID: uuid.New(), Name: "Scrooge McDuck", Age: 75, Rank: 4,
			Score: intPtr(100), Height: 1.1, Weight: 35, Balance: inf.NewDec(1000000, 0),
			Born:     time.Date(1867, 1, 1, 0, 0, 0, 0, time.UTC),
			Favorite: Green, Second: colorPtr(Red),
			Address: &Address{City: "Duckburg"},
			Secret:  "Dark",
			Email:   "scrooge@bin.example",
		},
	}
}

func names(ps []Person) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}
