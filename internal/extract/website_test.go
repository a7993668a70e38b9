package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscout/internal/config"
	"github.com/sells-group/leadscout/internal/model"
)

func testFetcher(t *testing.T) *Fetcher {
	t.Helper()
	cat, err := DefaultCatalogue()
	require.NoError(t, err)
	return NewFetcher(config.ExtractConfig{
		FetchTimeoutSecs: 2,
		UserAgent:        "LeadScoutBot/test",
	}, cat)
}

func findSignal(t *testing.T, signals []model.Signal, typ model.SignalType) *model.Signal {
	t.Helper()
	for i := range signals {
		if signals[i].Type == typ {
			return &signals[i]
		}
	}
	return nil
}

func TestWebsiteSignals_NoWebsite(t *testing.T) {
	f := testFetcher(t)
	b := &model.Business{ID: "b1", Name: "Smith Dental"}

	signals := f.WebsiteSignals(context.Background(), b, time.Now())

	require.Len(t, signals, 1)
	assert.Equal(t, model.SignalNoWebsite, signals[0].Type)
	assert.True(t, signals[0].Value.Bool)
	assert.Equal(t, 0.95, signals[0].Confidence)
}

func TestWebsiteSignals_FullPage(t *testing.T) {
	const page = `<!doctype html>
<html><head>
<meta name="viewport" content="width=device-width">
<script src="https://widget.intercom.io/widget/abc"></script>
<script src="https://www.googletagmanager.com/gtag/js?id=G-1"></script>
<script type="application/ld+json">
{"@type":"Dentist","name":"Smith Family Dental","telephone":"(803) 555-0134",
 "founder":{"@type":"Person","name":"Jane Smith"}}
</script>
</head><body>
<p>Hours: Monday 8-5, Tuesday 8-5</p>
<a href="/privacy-policy">Privacy Policy</a>
<a href="https://facebook.com/smithdental">Facebook</a>
<a href="mailto:jane@smithdental.com">Email Dr. Smith</a>
</body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "LeadScoutBot/test", r.Header.Get("User-Agent"))
		w.Write([]byte(page))
	}))
	defer srv.Close()

	f := testFetcher(t)
	b := &model.Business{ID: "b1", Name: "Smith Family Dental", Website: srv.URL}

	signals := f.WebsiteSignals(context.Background(), b, time.Now())

	chat := findSignal(t, signals, model.SignalHasChatWidget)
	require.NotNil(t, chat)
	assert.True(t, chat.Value.Bool)
	assert.Equal(t, 0.95, chat.Confidence)
	assert.NotEmpty(t, chat.EvidenceSnippet)

	booking := findSignal(t, signals, model.SignalHasOnlineBooking)
	require.NotNil(t, booking)
	assert.False(t, booking.Value.Bool, "scanned page without booking emits explicit false")
	assert.Equal(t, absenceConfidence, booking.Confidence)

	analytics := findSignal(t, signals, model.SignalHasAnalytics)
	require.NotNil(t, analytics)
	assert.True(t, analytics.Value.Bool)

	ssl := findSignal(t, signals, model.SignalHasSSL)
	require.NotNil(t, ssl)
	assert.False(t, ssl.Value.Bool, "httptest serves plain http")

	mobile := findSignal(t, signals, model.SignalMobileFriendly)
	require.NotNil(t, mobile)
	assert.True(t, mobile.Value.Bool)

	privacy := findSignal(t, signals, model.SignalHasPrivacyPolicy)
	require.NotNil(t, privacy)
	assert.True(t, privacy.Value.Bool)

	structured := findSignal(t, signals, model.SignalStructuredData)
	require.NotNil(t, structured)
	assert.True(t, structured.Value.Bool)

	hours := findSignal(t, signals, model.SignalHoursListed)
	require.NotNil(t, hours)
	assert.True(t, hours.Value.Bool)

	socials := findSignal(t, signals, model.SignalSocialLinks)
	require.NotNil(t, socials)
	assert.Contains(t, socials.Value.Object, "facebook")

	owner := findSignal(t, signals, model.SignalOwnerIdentified)
	require.NotNil(t, owner)
	assert.True(t, owner.Value.Bool)

	name := findSignal(t, signals, model.SignalContactName)
	require.NotNil(t, name)
	assert.Equal(t, "Jane Smith", name.Value.Object["name"])
	assert.Equal(t, jsonLDConfidence, name.Confidence)

	phone := findSignal(t, signals, model.SignalContactPhone)
	require.NotNil(t, phone)
	assert.Equal(t, "(803) 555-0134", phone.Value.Object["phone"])

	assert.Nil(t, findSignal(t, signals, model.SignalNoWebsite))
	assert.Nil(t, findSignal(t, signals, model.SignalWebsiteError))
}

func TestWebsiteSignals_HTTPS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>hello</body></html>`))
	}))
	defer srv.Close()

	f := testFetcher(t)
	f.client = srv.Client()
	b := &model.Business{ID: "b1", Name: "Acme", Website: srv.URL}

	signals := f.WebsiteSignals(context.Background(), b, time.Now())

	ssl := findSignal(t, signals, model.SignalHasSSL)
	require.NotNil(t, ssl)
	assert.True(t, ssl.Value.Bool)
}

func TestWebsiteSignals_ErrorStatusNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := testFetcher(t)
	b := &model.Business{ID: "b1", Name: "Acme", Website: srv.URL}

	signals := f.WebsiteSignals(context.Background(), b, time.Now())

	require.Len(t, signals, 1)
	assert.Equal(t, model.SignalWebsiteError, signals[0].Type)
	assert.Equal(t, "http_status_503", signals[0].Value.Object["reason"])
	assert.Equal(t, websiteErrorConfidence, signals[0].Confidence)
	assert.Equal(t, int32(1), calls.Load(), "an error status answer is not a flake")
}

func TestWebsiteSignals_UnreachableHost(t *testing.T) {
	f := testFetcher(t)
	b := &model.Business{ID: "b1", Name: "Acme", Website: "http://127.0.0.1:1"}

	signals := f.WebsiteSignals(context.Background(), b, time.Now())

	require.Len(t, signals, 1)
	assert.Equal(t, model.SignalWebsiteError, signals[0].Type)
	assert.Equal(t, "unreachable", signals[0].Value.Object["reason"])
}

func TestWebsiteSignals_SchemeDefaulted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>ok</body></html>`))
	}))
	defer srv.Close()

	f := testFetcher(t)
	b := &model.Business{ID: "b1", Name: "Acme", Website: srv.Listener.Addr().String()}

	signals := f.WebsiteSignals(context.Background(), b, time.Now())
	assert.Nil(t, findSignal(t, signals, model.SignalWebsiteError))
	assert.NotNil(t, findSignal(t, signals, model.SignalHasSSL))
}

func TestHasHoursListed(t *testing.T) {
	assert.True(t, hasHoursListed("our hours: monday to friday 9-5"))
	assert.True(t, hasHoursListed(`"openinghours": "mo-fr 09:00-17:00"`))
	assert.False(t, hasHoursListed("after hours emergencies call us"))
	assert.False(t, hasHoursListed("monday tuesday schedule"))
}
