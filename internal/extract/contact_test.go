package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscout/internal/model"
)

func contactSignalsFor(t *testing.T, body string) []model.Signal {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	b := &model.Business{ID: "b1", Name: "Acme"}
	return ContactSignals(b, doc, &page{finalURL: "https://acme.example", body: body}, time.Now())
}

func TestContactSignals_JSONLDFounder(t *testing.T) {
	body := `<html><head><script type="application/ld+json">
	{"@type":"LocalBusiness","name":"Acme Plumbing","email":"mailto:rob@acmeplumbing.com",
	 "telephone":"+1-803-555-0177","founder":{"@type":"Person","name":"Rob Vance"}}
	</script></head><body></body></html>`

	signals := contactSignalsFor(t, body)

	email := findSignal(t, signals, model.SignalContactEmail)
	require.NotNil(t, email)
	assert.Equal(t, "rob@acmeplumbing.com", email.Value.Object["email"])
	assert.Equal(t, jsonLDConfidence, email.Confidence)

	name := findSignal(t, signals, model.SignalContactName)
	require.NotNil(t, name)
	assert.Equal(t, "Rob Vance", name.Value.Object["name"])
	assert.Equal(t, "owner", name.Value.Object["role"])

	owner := findSignal(t, signals, model.SignalOwnerIdentified)
	require.NotNil(t, owner)
	assert.True(t, owner.Value.Bool)
}

func TestContactSignals_GraphForm(t *testing.T) {
	body := `<script type="application/ld+json">
	{"@graph":[{"@type":"WebSite","name":"site"},
	 {"@type":"Person","name":"Mia Torres","email":"mia@torreslaw.com"}]}
	</script>`

	signals := contactSignalsFor(t, body)

	name := findSignal(t, signals, model.SignalContactName)
	require.NotNil(t, name)
	assert.Equal(t, "Mia Torres", name.Value.Object["name"])
}

func TestContactSignals_RegexFallback(t *testing.T) {
	body := `<html><body>
	<p>Owner: Sarah Kim</p>
	<p>Call (803) 555-0101 or write sarah@kimchiro.com</p>
	</body></html>`

	signals := contactSignalsFor(t, body)

	email := findSignal(t, signals, model.SignalContactEmail)
	require.NotNil(t, email)
	assert.Equal(t, "sarah@kimchiro.com", email.Value.Object["email"])
	assert.Equal(t, emailRegexConfidence, email.Confidence)

	phone := findSignal(t, signals, model.SignalContactPhone)
	require.NotNil(t, phone)
	assert.Equal(t, "(803) 555-0101", phone.Value.Object["phone"])

	name := findSignal(t, signals, model.SignalContactName)
	require.NotNil(t, name)
	assert.Equal(t, "Sarah Kim", name.Value.Object["name"])
	assert.Equal(t, "owner", name.Value.Object["role"])
	assert.Equal(t, nameRegexConfidence, name.Confidence)
}

func TestContactSignals_SkipsGenericMailboxes(t *testing.T) {
	signals := contactSignalsFor(t, `<body>write info@acme.com or support@acme.com</body>`)
	assert.Nil(t, findSignal(t, signals, model.SignalContactEmail))

	signals = contactSignalsFor(t, `<body>write info@acme.com or dan@acme.com</body>`)
	email := findSignal(t, signals, model.SignalContactEmail)
	require.NotNil(t, email)
	assert.Equal(t, "dan@acme.com", email.Value.Object["email"])
}

func TestContactSignals_NothingFound(t *testing.T) {
	signals := contactSignalsFor(t, `<body><p>Welcome to our site.</p></body>`)
	assert.Empty(t, signals, "contact signals are emitted only when found")
}

func TestFirstNonGenericEmail_SkipsAssetNames(t *testing.T) {
	assert.Empty(t, firstNonGenericEmail(`<img src="logo@2x.png">`))
	assert.Equal(t, "amy@shop.com", firstNonGenericEmail(`<img src="logo@2x.png"> amy@shop.com`))
}

func TestSanitizeSnippet(t *testing.T) {
	got := sanitizeSnippet(`<script>alert(1)</script>  Jane   Smith, <b>Owner</b>`)
	assert.NotContains(t, got, "<")
	assert.Contains(t, got, "Jane Smith")

	long := strings.Repeat("a", 500)
	assert.Len(t, sanitizeSnippet(long), 160)
}
