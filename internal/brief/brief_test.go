package brief

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/internal/storage/memory"
	"github.com/wonny/newsquant/pkg/config"
	"github.com/wonny/newsquant/pkg/logger"
)

var briefNow = time.Date(2025, 6, 2, 22, 30, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

func TestMatchKeywords(t *testing.T) {
	items := []contracts.RawItem{
		{Source: "cnbc", Title: "NVIDIA tops estimates as Fed holds", URL: "https://x/1"},
		{Source: "yahoo", Title: "Oil slips", URL: "https://x/2"},
	}

	alerts := MatchKeywords(items, []string{" Nvidia ", "fed", "", "oil"}, briefNow)

	require.Len(t, alerts, 3)
	assert.Equal(t, "nvidia", alerts[0].Keyword)
	assert.Equal(t, "fed", alerts[1].Keyword)
	assert.Equal(t, "oil", alerts[2].Keyword)
	assert.Equal(t, "https://x/2", alerts[2].URL)
	assert.Empty(t, MatchKeywords(items, nil, briefNow))
}

func TestAlerter_ProcessWritesStoreAndMarkdown(t *testing.T) {
	dir := t.TempDir()
	store := memory.NewAlertStore()
	a := NewAlerter(store, []string{"fed"}, dir, logger.NewNop())

	items := []contracts.RawItem{
		{Source: "cnbc", Title: "Fed holds rates", URL: "https://x/1"},
		{Source: "reddit_stocks", Title: "Fed\nminutes thread"},
	}

	n, err := a.Process(context.Background(), items, briefNow)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = a.Process(context.Background(), items[:1], briefNow.Add(time.Minute))
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "2025-06-02-news.md"))
	require.NoError(t, err)
	md := string(raw)
	assert.Equal(t, 2, strings.Count(md, "\n## "))
	assert.Contains(t, md, "### keyword: fed")
	assert.Contains(t, md, "- [Fed holds rates](https://x/1) - cnbc\n")
	assert.Contains(t, md, "- Fed minutes thread - reddit_stocks\n")

	stored, err := store.AlertsSince(context.Background(), briefNow.Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestAlerter_StoreFailure(t *testing.T) {
	store := memory.NewAlertStore()
	store.FailWith(errors.New("db down"))

	_, err := NewAlerter(store, []string{"fed"}, "", logger.NewNop()).
		Process(context.Background(), []contracts.RawItem{{Title: "Fed"}}, briefNow)
	assert.ErrorContains(t, err, "db down")
}

func TestRender(t *testing.T) {
	status := "accepted"
	failure := "quote failed"
	d := Data{
		Account: &contracts.AccountSnapshot{NetLiquidation: ptr(100000.5), CreatedAt: briefNow},
		Positions: []contracts.PositionSnapshot{
			{Ticker: "NVDA", Position: 0.5, MarketPrice: ptr(130), CreatedAt: briefNow},
			{Ticker: "NVDA", Position: 0.4, CreatedAt: briefNow.Add(-time.Minute)},
		},
		Executions: []contracts.Execution{
			{Ticker: "NVDA", AmountUSD: 40, Price: ptr(125), Qty: ptr(0.32), DryRun: true, OrderStatus: &status, CreatedAt: briefNow},
			{Ticker: "AMD", AmountUSD: 40, Error: &failure, CreatedAt: briefNow},
		},
		Alerts: []contracts.NewsAlert{
			{Keyword: "fed", Source: "cnbc", Title: "Fed holds", URL: "https://x/1", CreatedAt: briefNow},
			{Keyword: "ai", Source: "yahoo", Title: "AI capex", CreatedAt: briefNow},
		},
	}

	md := Render(briefNow, d)

	assert.True(t, strings.HasPrefix(md, "# Daily Brief 2025-06-02 (UTC)"))
	assert.Contains(t, md, "- NetLiquidation: 100000.5\n")
	assert.Contains(t, md, "- TotalCash: n/a\n")
	assert.Equal(t, 1, strings.Count(md, "- NVDA: pos="))
	assert.Contains(t, md, "- NVDA: pos=0.5 avg_cost=n/a mkt_price=130")
	assert.Contains(t, md, "| NVDA | amount=40 | dry_run=true | price=125 | qty=0.32 | status=accepted | error=n/a")
	assert.Contains(t, md, "| AMD | amount=40 | dry_run=false | price=n/a | qty=n/a | status=n/a | error=quote failed")
	assert.Less(t, strings.Index(md, "### ai"), strings.Index(md, "### fed"))
}

func TestRender_Empty(t *testing.T) {
	md := Render(briefNow, Data{})
	for _, want := range []string{"(no account snapshot)", "(no position snapshot)", "(no executions)", "(no alerts)"} {
		assert.Contains(t, md, want)
	}
}

type recordingNotifier struct {
	name    string
	err     error
	subject string
	body    string
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) Send(_ context.Context, subject, body string) error {
	r.subject, r.body = subject, body
	return r.err
}

func TestService_Run(t *testing.T) {
	alerts := memory.NewAlertStore()
	require.NoError(t, alerts.InsertAlerts(context.Background(), []contracts.NewsAlert{
		{Keyword: "fed", Source: "cnbc", Title: "Fed holds", CreatedAt: briefNow.Add(-time.Hour)},
		{Keyword: "fed", Source: "cnbc", Title: "Yesterday", CreatedAt: briefNow.Add(-30 * time.Hour)},
	}))
	snapshots := memory.NewSnapshotStore()
	require.NoError(t, snapshots.InsertPositions(context.Background(), []contracts.PositionSnapshot{
		{Ticker: "OLD", Position: 1, CreatedAt: briefNow.Add(-2 * time.Hour)},
	}))
	executions := memory.NewExecutionStore()
	require.NoError(t, executions.Insert(context.Background(), &contracts.Execution{Ticker: "NVDA", AmountUSD: 40, CreatedAt: briefNow.Add(-8 * time.Hour)}))

	ok := &recordingNotifier{name: "ok"}
	broken := &recordingNotifier{name: "broken", err: errors.New("smtp down")}
	dir := t.TempDir()
	svc := NewService(alerts, snapshots, executions, dir, logger.NewNop(), broken, ok)

	path, err := svc.Run(context.Background(), contracts.NewRunClock(briefNow))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2025-06-02-brief.md"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	md := string(raw)
	assert.Contains(t, md, "Fed holds")
	assert.NotContains(t, md, "Yesterday")
	assert.NotContains(t, md, "OLD")
	assert.Contains(t, md, "| NVDA |")

	assert.Equal(t, "Daily Brief 2025-06-02", ok.subject)
	assert.Equal(t, md, ok.body)
}

func TestTelegramNotifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "42", r.PostForm.Get("chat_id"))
		assert.True(t, strings.HasPrefix(r.PostForm.Get("text"), "Subject\n\nbody"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42", logger.NewNop())
	n.baseURL = srv.URL
	require.NoError(t, n.Send(context.Background(), "Subject", "body"))

	n.chatID = ""
	assert.ErrorIs(t, n.Send(context.Background(), "s", "b"), ErrNotifierMisconfigured)
}

func TestEmailNotifier(t *testing.T) {
	n := NewEmailNotifier(config.NotifyConfig{
		SMTPHost: "smtp.example.com", SMTPUser: "bot@example.com", SMTPPass: "pw",
		MailTo: "a@example.com, b@example.com",
	})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	n.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	require.NoError(t, n.Send(context.Background(), "Daily Brief", "line1\nline2"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "bot@example.com", gotFrom)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Daily Brief\r\n")
	assert.Contains(t, string(gotMsg), "line1\r\nline2")

	assert.Len(t, NotifiersFromConfig(config.NotifyConfig{SMTPHost: "h", MailTo: "x@y"}, logger.NewNop()), 1)
	assert.Empty(t, NotifiersFromConfig(config.NotifyConfig{}, logger.NewNop()))
}
