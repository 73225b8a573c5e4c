// Package randomgen produces plausible contacts and interactions for load tests and
// integration tests.
package randomgen

import (
	"fmt"
	"math/rand"
	"time"

	api "gitlab.com/dirk.krummacker/relations-service/pkg/model"
)

var firstNames = []string{
	"Ada", "Alan", "Barbara", "Dennis", "Edsger", "Erika", "Frances", "Grace", "Hans", "Ken",
	"Linus", "Margaret", "Niklaus", "Radia", "Rudi", "Sophie", "Tim", "Ursula",
}

var lastNames = []string{
	"Allen", "Dijkstra", "Hamilton", "Hopper", "Kernighan", "Liskov", "Lovelace", "Mustermann",
	"Perlman", "Ritchie", "Thompson", "Torvalds", "Turing", "Völler", "Wilson", "Wirth", "Wurst",
}

var activities = []string{
	"Coffee", "Lunch", "Dinner", "Phone call", "Video call", "Walk", "Conference", "Birthday party",
	"Concert", "Football match", "Code review", "Hiking trip",
}

var topics = []string{
	"the new job", "holidays", "the kids", "a book", "moving house", "the garden", "old times",
	"a side project", "the weather",
}

// Generator creates random data. It is not safe for concurrent use.
type Generator struct {
	rnd *rand.Rand
}

// New returns a generator with a fixed seed, so a run can be repeated.
func New(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

func (g *Generator) pick(values []string) string {
	return values[g.rnd.Intn(len(values))]
}

// Name returns a first and a last name.
func (g *Generator) Name() string {
	return g.pick(firstNames) + " " + g.pick(lastNames)
}

// Phone returns a phone number in international format.
func (g *Generator) Phone() string {
	return fmt.Sprintf("+%d %03d %07d", 1+g.rnd.Intn(98), g.rnd.Intn(1000), g.rnd.Intn(10000000))
}

// Birthday returns a date between 1940 and 2009.
func (g *Generator) Birthday() time.Time {
	start := time.Date(1940, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start.AddDate(0, 0, g.rnd.Intn(70*365))
}

// Date returns a day within the year before now.
func (g *Generator) Date(now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -g.rnd.Intn(365))
}

// Contact returns the request for a new contact with all fields set.
func (g *Generator) Contact() api.ContactRequest {
	name := g.Name()
	phone := g.Phone()
	email := fmt.Sprintf("%s@example.org", slug(name))
	return api.ContactRequest{
		Name:     &name,
		Email:    api.NewText(email),
		Phone:    api.NewText(phone),
		Birthday: api.NewDate(g.Birthday()),
	}
}

// Interaction returns the request for a new interaction with the contact. The notes are
// HTML.
func (g *Generator) Interaction(contactID string, now time.Time) api.InteractionRequest {
	title := g.pick(activities)
	notes := fmt.Sprintf("<p>Talked about <b>%s</b>.</p><p>Follow up on %s.</p>", g.pick(topics), g.pick(topics))
	req := api.InteractionRequest{
		Title: &title,
		Notes: &notes,
		Date:  api.NewDate(g.Date(now)),
	}
	if contactID != "" {
		req.ContactId = &contactID
	}
	return req
}

func slug(name string) string {
	b := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r == ' ':
			b = append(b, '.')
		case r >= 'A' && r <= 'Z':
			b = append(b, r+'a'-'A')
		case r >= 'a' && r <= 'z':
			b = append(b, r)
		}
	}
	return string(b)
}
