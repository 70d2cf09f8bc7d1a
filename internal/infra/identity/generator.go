package identity

import (
	"fmt"
	"math/rand"
	"strings"

	"telegram-verification-bot/internal/domain/model"
	"telegram-verification-bot/internal/domain/ports/adapter"
)

var _ adapter.IdentityGenerator = (*Generator)(nil)

var firstNames = []string{
	"James", "Mary", "Robert", "Patricia", "John", "Jennifer", "Michael",
	"Linda", "David", "Elizabeth", "William", "Barbara", "Richard", "Susan",
	"Joseph", "Jessica", "Thomas", "Sarah", "Daniel", "Karen", "Matthew",
	"Lisa", "Anthony", "Nancy", "Mark", "Emily", "Steven", "Ashley",
	"Andrew", "Amanda", "Joshua", "Melissa", "Kevin", "Michelle", "Brian",
	"Laura", "Tyler", "Rachel", "Jacob", "Megan",
}

var lastNames = []string{
	"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller",
	"Davis", "Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez",
	"Wilson", "Anderson", "Thomas", "Taylor", "Moore", "Jackson", "Martin",
	"Lee", "Perez", "Thompson", "White", "Harris", "Sanchez", "Clark",
	"Ramirez", "Lewis", "Robinson", "Walker", "Young", "Allen", "King",
	"Wright", "Scott", "Torres", "Nguyen", "Hill", "Flores",
}

var emailDomains = []string{"gmail.com", "outlook.com", "yahoo.com", "icloud.com"}

// Organizations submitted with teacher-segment attempts. IDs follow the
// provider's school registry format.
var teacherOrgs = []model.Organization{
	{ID: 3539549, IDExtended: "3539549-K12", Name: "Lincoln High School"},
	{ID: 3546811, IDExtended: "3546811-K12", Name: "Washington Middle School"},
	{ID: 3521776, IDExtended: "3521776-K12", Name: "Roosevelt Elementary School"},
	{ID: 3550214, IDExtended: "3550214-K12", Name: "Jefferson High School"},
}

// Organizations for student-segment attempts (universities).
var studentOrgs = []model.Organization{
	{ID: 2563, IDExtended: "2563-UNIV", Name: "Arizona State University"},
	{ID: 3499, IDExtended: "3499-UNIV", Name: "Ohio State University"},
	{ID: 1426, IDExtended: "1426-UNIV", Name: "University of Central Florida"},
	{ID: 2920, IDExtended: "2920-UNIV", Name: "Texas A&M University"},
}

// Generator produces synthetic but well-formed identity profiles for one
// verification attempt. It is stateless and safe for concurrent use; one
// instance is shared across all in-flight attempts, so randomness goes
// through the locked package-global source.
type Generator struct{}

func New() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(provider model.ProviderTag) model.Identity {
	first := firstNames[rand.Intn(len(firstNames))]
	last := lastNames[rand.Intn(len(lastNames))]

	student := provider == model.ProviderSpotifyStudent || provider == model.ProviderYouTubeStudent

	var org model.Organization
	var birth string
	if student {
		org = studentOrgs[rand.Intn(len(studentOrgs))]
		birth = g.birthDate(1998, 2006)
	} else {
		org = teacherOrgs[rand.Intn(len(teacherOrgs))]
		birth = g.birthDate(1968, 1995)
	}

	return model.Identity{
		FirstName:    first,
		LastName:     last,
		Email:        g.email(first, last),
		BirthDate:    birth,
		Organization: org,
	}
}

func (g *Generator) email(first, last string) string {
	domain := emailDomains[rand.Intn(len(emailDomains))]
	return fmt.Sprintf("%s.%s%d@%s",
		strings.ToLower(first), strings.ToLower(last), 100+rand.Intn(900), domain)
}

// birthDate picks a uniform day in [fromYear, toYear], formatted YYYY-MM-DD.
func (g *Generator) birthDate(fromYear, toYear int) string {
	year := fromYear + rand.Intn(toYear-fromYear+1)
	month := 1 + rand.Intn(12)
	day := 1 + rand.Intn(28)
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}
