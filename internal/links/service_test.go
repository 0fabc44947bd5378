package links

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkboard/internal/api"
	"linkboard/internal/domain"
	"linkboard/internal/page"
	"linkboard/internal/schedule"
)

type createCall struct {
	SiteID  string
	Payload domain.CreateLinkRequest
}

type fakeAPI struct {
	mu sync.Mutex

	list      []domain.Link
	listErr   error
	listCalls []api.ListQuery
	listTimes []time.Time

	debug      []domain.Link
	debugErr   error
	debugCalls int

	result      domain.Result
	createErr   error
	createCalls []createCall
}

func (f *fakeAPI) ListLinks(_ context.Context, q api.ListQuery) ([]domain.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, q)
	f.listTimes = append(f.listTimes, time.Now())
	return f.list, f.listErr
}

func (f *fakeAPI) DebugLinks(_ context.Context) ([]domain.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.debugCalls++
	return f.debug, f.debugErr
}

func (f *fakeAPI) CreateLink(_ context.Context, siteID string, payload domain.CreateLinkRequest) (domain.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls = append(f.createCalls, createCall{SiteID: siteID, Payload: payload})
	return f.result, f.createErr
}

func (f *fakeAPI) listCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listCalls)
}

// fakeScheduler records scheduled callbacks without running them.
type fakeScheduler struct {
	delays []time.Duration
	funcs  []func(context.Context)
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func(context.Context)) {
	s.delays = append(s.delays, d)
	s.funcs = append(s.funcs, f)
}

func (s *fakeScheduler) fireAll() {
	s.fireAllWith(context.Background())
}

func (s *fakeScheduler) fireAllWith(ctx context.Context) {
	for _, f := range s.funcs {
		f(ctx)
	}
}

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newMemorySession(siteID string) (*Session, *page.Memory) {
	doc := page.NewMemory()
	sess := NewSession(doc, doc, doc)
	sess.ManagementSiteID = siteID
	return sess, doc
}

func sampleLinks(n int) []domain.Link {
	links := make([]domain.Link, n)
	for i := range links {
		id := int64(n - i)
		links[i] = domain.Link{ID: id, Number: int(id), URL: "https://zigbang.com/home/" + strconv.FormatInt(id, 10)}
	}
	return links
}

func fillForm(t *testing.T, doc *page.Memory, url, memo string, insured bool) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, doc.SetValue(ctx, page.LinkURL, url))
	require.NoError(t, doc.SetValue(ctx, page.LinkMemo, memo))
	require.NoError(t, doc.SetChecked(ctx, page.GuaranteeInsurance, insured))
}

// --- Fetcher ---

func TestLoadLinksWithoutCache_RendersResult(t *testing.T) {
	fake := &fakeAPI{list: sampleLinks(2)}
	svc := NewService(fake, testLogger())
	sess, doc := newMemorySession("cust-42")
	sess.SetFilters(domain.FilterState{Platform: "dabang", User: "kim", Like: "liked", Guarantee: "available"})

	links, err := svc.LoadLinksWithoutCache(context.Background(), sess)
	require.NoError(t, err)
	assert.Len(t, links, 2)

	require.Len(t, fake.listCalls, 1)
	q := fake.listCalls[0]
	assert.Equal(t, "cust-42", q.ManagementSiteID)
	assert.True(t, q.NoCache)
	assert.Equal(t, domain.AllFilters(), q.Filters, "filters are forced to all regardless of session state")

	assert.Equal(t, 1, doc.Renders())
	assert.Equal(t, sampleLinks(2), doc.Rendered())
}

func TestLoadLinksWithoutCache_EmptyListIsRendered(t *testing.T) {
	fake := &fakeAPI{list: []domain.Link{}}
	svc := NewService(fake, testLogger())
	sess, doc := newMemorySession("")

	require.NoError(t, doc.DisplayLinks(context.Background(), sampleLinks(4)))

	links, err := svc.LoadLinksWithoutCache(context.Background(), sess)
	require.NoError(t, err)
	assert.Empty(t, links)
	assert.Equal(t, 2, doc.Renders(), "empty result still reaches the renderer")
	assert.Empty(t, doc.Rendered())
}

func TestLoadLinksWithoutCache_FailureDoesNotRender(t *testing.T) {
	fake := &fakeAPI{listErr: errors.New("connection refused")}
	svc := NewService(fake, testLogger())
	sess, doc := newMemorySession("")

	_, err := svc.LoadLinksWithoutCache(context.Background(), sess)
	require.Error(t, err)
	assert.Zero(t, doc.Renders())
	assert.Empty(t, doc.Alerts(), "fetch failures are logged, not alerted")
	assert.Equal(t, 1, fake.listCallCount(), "no retry")
}

func TestLoadLinksWithoutCache_NonceIncreasesAcrossCalls(t *testing.T) {
	var nonces []int64
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.ParseInt(r.URL.Query().Get("_t"), 10, 64)
		assert.NoError(t, err)
		mu.Lock()
		nonces = append(nonces, n)
		mu.Unlock()
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL, 0, testLogger())
	require.NoError(t, err)
	svc := NewService(client, testLogger())
	sess, _ := newMemorySession("cust-1")

	for i := 0; i < 4; i++ {
		_, err := svc.LoadLinksWithoutCache(context.Background(), sess)
		require.NoError(t, err)
	}

	require.Len(t, nonces, 4)
	for i := 1; i < len(nonces); i++ {
		assert.Greater(t, nonces[i], nonces[i-1])
	}
}

func TestLoadLinks_UsesSessionFiltersAndDate(t *testing.T) {
	fake := &fakeAPI{list: sampleLinks(1)}
	svc := NewService(fake, testLogger())
	sess, doc := newMemorySession("cust-42")
	filters := domain.FilterState{Platform: "dabang", User: "kim", Like: domain.LikeLiked, Guarantee: domain.GuaranteeAvailable}
	sess.SetFilters(filters)

	_, err := svc.LoadLinks(context.Background(), sess, "2025-07-01")
	require.NoError(t, err)

	require.Len(t, fake.listCalls, 1)
	q := fake.listCalls[0]
	assert.Equal(t, api.ListQuery{ManagementSiteID: "cust-42", Filters: filters, Date: "2025-07-01"}, q)
	assert.Equal(t, sampleLinks(1), doc.Rendered())
}

func TestLoadLinks_RejectsBadFilters(t *testing.T) {
	fake := &fakeAPI{}
	svc := NewService(fake, testLogger())
	sess, doc := newMemorySession("")

	sess.SetFilters(domain.FilterState{Like: "loved"})
	_, err := svc.LoadLinks(context.Background(), sess, "")
	assert.Error(t, err)

	sess.SetFilters(domain.AllFilters())
	_, err = svc.LoadLinks(context.Background(), sess, "07/01/2025")
	assert.Error(t, err)

	assert.Zero(t, fake.listCallCount())
	assert.Zero(t, doc.Renders())
}

// --- Filter resetter ---

func TestForceRefresh_ResetsFiltersAndControls(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAPI{list: sampleLinks(1)}
	svc := NewService(fake, testLogger())
	sess, doc := newMemorySession("")

	sess.SetFilters(domain.FilterState{Platform: "dabang", User: "kim", Like: "disliked", Guarantee: "unavailable"})
	require.NoError(t, doc.SetValue(ctx, page.PlatformFilter, "dabang"))
	require.NoError(t, doc.SetValue(ctx, page.UserFilter, "kim"))
	require.NoError(t, doc.SetValue(ctx, page.LikeFilter, "disliked"))
	require.NoError(t, doc.SetValue(ctx, page.GuaranteeFilter, "unavailable"))
	require.NoError(t, doc.SetValue(ctx, page.DateFilter, "2025-07-01"))

	require.NoError(t, svc.ForceRefresh(ctx, sess))

	want := domain.FilterState{Platform: "all", User: "all", Like: "all", Guarantee: "all"}
	if diff := cmp.Diff(want, sess.Filters()); diff != "" {
		t.Errorf("session filters mismatch (-want +got):\n%s", diff)
	}
	for _, id := range []string{page.PlatformFilter, page.UserFilter, page.LikeFilter, page.GuaranteeFilter} {
		v, err := doc.Value(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "all", v, id)
	}
	date, err := doc.Value(ctx, page.DateFilter)
	require.NoError(t, err)
	assert.Empty(t, date)

	assert.Equal(t, 1, fake.listCallCount())
	assert.Equal(t, 1, doc.Renders())
}

type syncingDoc struct {
	*page.Memory
	synced []domain.FilterState
}

func (d *syncingDoc) SyncFilters(_ context.Context, f domain.FilterState) error {
	d.synced = append(d.synced, f)
	return nil
}

func TestForceRefresh_SyncsFiltersToDocument(t *testing.T) {
	doc := &syncingDoc{Memory: page.NewMemory()}
	sess := NewSession(doc, doc, doc)
	sess.SetFilters(domain.FilterState{Platform: "dabang"})
	svc := NewService(&fakeAPI{}, testLogger())

	require.NoError(t, svc.ForceRefresh(context.Background(), sess))
	assert.Equal(t, []domain.FilterState{domain.AllFilters()}, doc.synced)
}

type brokenDoc struct {
	*page.Memory
}

func (brokenDoc) SetValue(_ context.Context, id, _ string) error {
	return errors.New("detached element " + id)
}

func TestForceRefresh_ControlFailureSkipsFetch(t *testing.T) {
	fake := &fakeAPI{}
	svc := NewService(fake, testLogger())
	doc := brokenDoc{Memory: page.NewMemory()}
	sess := NewSession(doc, doc, doc)

	assert.Error(t, svc.ForceRefresh(context.Background(), sess))
	assert.Zero(t, fake.listCallCount())
}

// --- Submitter ---

func TestAddLink_EmptyURL(t *testing.T) {
	fake := &fakeAPI{result: domain.Result{Success: true}}
	sched := &fakeScheduler{}
	svc := NewService(fake, testLogger(), WithScheduler(sched))
	sess, doc := newMemorySession("")

	_, err := svc.AddLink(context.Background(), sess)
	assert.ErrorIs(t, err, ErrEmptyURL)

	assert.Empty(t, fake.createCalls, "no network request")
	assert.Equal(t, []string{MsgEmptyURL}, doc.Alerts(), "exactly one validation alert")
	assert.Empty(t, sched.funcs)
}

func TestAddLink_SuccessClearsFormAndSchedulesRefresh(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAPI{result: domain.Result{Success: true, ID: 77}, list: sampleLinks(3)}
	sched := &fakeScheduler{}
	svc := NewService(fake, testLogger(), WithScheduler(sched))
	sess, doc := newMemorySession("cust-42")
	sess.CurrentPlatform = "dabang"
	fillForm(t, doc, "https://dabang.com/room/77", "2nd floor", true)

	res, err := svc.AddLink(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, int64(77), res.ID)

	require.Len(t, fake.createCalls, 1)
	call := fake.createCalls[0]
	assert.Equal(t, "cust-42", call.SiteID)
	assert.Equal(t, domain.CreateLinkRequest{
		URL:                "https://dabang.com/room/77",
		Platform:           "dabang",
		AddedBy:            "중개사",
		Memo:               "2nd floor",
		GuaranteeInsurance: true,
		ResidenceExtra:     "",
	}, call.Payload)

	// cleared immediately, before the refresh runs
	url, _ := doc.Value(ctx, page.LinkURL)
	memo, _ := doc.Value(ctx, page.LinkMemo)
	insured, _ := doc.Checked(ctx, page.GuaranteeInsurance)
	assert.Empty(t, url)
	assert.Empty(t, memo)
	assert.False(t, insured)

	require.Len(t, sched.delays, 1, "exactly one refresh scheduled")
	assert.Equal(t, time.Second, sched.delays[0])
	assert.Zero(t, fake.listCallCount(), "refresh must not run before the delay")

	sched.fireAll()
	assert.Equal(t, 1, fake.listCallCount())
	assert.Equal(t, domain.AllFilters(), sess.Filters())
	assert.Len(t, doc.Rendered(), 3)
	assert.Empty(t, doc.Alerts())
}

func TestAddLink_RefreshRunsOnceAfterDelay(t *testing.T) {
	const delay = 40 * time.Millisecond
	fake := &fakeAPI{result: domain.Result{Success: true}}
	timers := schedule.NewTimers()
	svc := NewService(fake, testLogger(), WithScheduler(timers), WithRefreshDelay(delay))
	sess, doc := newMemorySession("")
	fillForm(t, doc, "https://zigbang.com/home/5", "", false)

	start := time.Now()
	_, err := svc.AddLink(context.Background(), sess)
	require.NoError(t, err)
	timers.Wait()

	require.Equal(t, 1, fake.listCallCount())
	assert.GreaterOrEqual(t, fake.listTimes[0].Sub(start), delay, "refresh fired early")
}

func TestAddLink_RefreshSurvivesCancelledRequest(t *testing.T) {
	fake := &fakeAPI{result: domain.Result{Success: true}}
	sched := &fakeScheduler{}
	svc := NewService(fake, testLogger(), WithScheduler(sched))
	sess, doc := newMemorySession("")
	fillForm(t, doc, "https://zigbang.com/home/6", "", false)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := svc.AddLink(ctx, sess)
	require.NoError(t, err)
	cancel()

	sched.fireAll()
	assert.Equal(t, 1, fake.listCallCount())
}

func TestAddLink_RefreshStopsWithScheduler(t *testing.T) {
	fake := &fakeAPI{result: domain.Result{Success: true}}
	sched := &fakeScheduler{}
	svc := NewService(fake, testLogger(), WithScheduler(sched))
	sess, doc := newMemorySession("")
	fillForm(t, doc, "https://zigbang.com/home/8", "", false)

	_, err := svc.AddLink(context.Background(), sess)
	require.NoError(t, err)

	stopped, stop := context.WithCancel(context.Background())
	stop()
	sched.fireAllWith(stopped)

	assert.Zero(t, fake.listCallCount(), "a stopped scheduler skips the refresh")
	assert.Zero(t, doc.Renders())
}

func TestAddLink_StopCancelsRefreshInFlight(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"success":true,"id":1}`))
			return
		}
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL, 0, testLogger())
	require.NoError(t, err)
	timers := schedule.NewTimers()
	svc := NewService(client, testLogger(), WithScheduler(timers), WithRefreshDelay(time.Millisecond))
	sess, doc := newMemorySession("")
	fillForm(t, doc, "https://zigbang.com/home/1", "", false)

	_, err = svc.AddLink(context.Background(), sess)
	require.NoError(t, err)

	<-started
	timers.Stop()
	timers.Wait()
	assert.Zero(t, doc.Renders(), "the aborted refresh renders nothing")
}

func TestAddLink_ServerRejection(t *testing.T) {
	fake := &fakeAPI{result: domain.Result{Success: false, Error: "X"}}
	sched := &fakeScheduler{}
	svc := NewService(fake, testLogger(), WithScheduler(sched))
	sess, doc := newMemorySession("")
	fillForm(t, doc, "https://zigbang.com/home/8", "keep me", false)

	_, err := svc.AddLink(context.Background(), sess)
	var rejected *api.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "X", rejected.Message)

	assert.Equal(t, []string{"X"}, doc.Alerts())
	assert.Empty(t, sched.funcs, "no refresh on rejection")
	memo, _ := doc.Value(context.Background(), page.LinkMemo)
	assert.Equal(t, "keep me", memo, "form is left untouched")
}

func TestAddLink_ServerRejectionWithoutMessage(t *testing.T) {
	fake := &fakeAPI{result: domain.Result{Success: false}}
	svc := NewService(fake, testLogger(), WithScheduler(&fakeScheduler{}))
	sess, doc := newMemorySession("")
	fillForm(t, doc, "https://zigbang.com/home/9", "", false)

	_, err := svc.AddLink(context.Background(), sess)
	assert.Error(t, err)
	assert.Equal(t, []string{MsgAddFailed}, doc.Alerts())
}

func TestAddLink_TransportFailure(t *testing.T) {
	fake := &fakeAPI{createErr: errors.New("connection reset")}
	sched := &fakeScheduler{}
	svc := NewService(fake, testLogger(), WithScheduler(sched))
	sess, doc := newMemorySession("")
	fillForm(t, doc, "https://zigbang.com/home/10", "", false)

	_, err := svc.AddLink(context.Background(), sess)
	assert.Error(t, err)
	assert.Equal(t, []string{MsgAddTransport}, doc.Alerts())
	assert.Empty(t, sched.funcs)
	assert.Len(t, fake.createCalls, 1, "no retry")
}

// --- Debug reporter ---

func TestDebugStatus_CountsAreIndependent(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAPI{debug: sampleLinks(5)}
	svc := NewService(fake, testLogger())
	sess, doc := newMemorySession("cust-42")
	sess.CurrentUser = "kim"
	require.NoError(t, doc.DisplayLinks(ctx, sampleLinks(3)))

	report, err := svc.DebugStatus(ctx, sess)
	require.NoError(t, err)

	assert.Equal(t, 3, report.RenderedCount)
	assert.Equal(t, 5, report.APICount)
	assert.Equal(t, sampleLinks(5)[:3], report.Recent)
	assert.Equal(t, "cust-42", report.ManagementSiteID)
	assert.Equal(t, "kim", report.CurrentUser)
	assert.Equal(t, domain.AllFilters(), report.Filters)

	assert.Equal(t, 1, doc.Renders(), "debug must not re-render")
	assert.Zero(t, fake.listCallCount())
}

func TestDebugStatus_EmptyAPIList(t *testing.T) {
	svc := NewService(&fakeAPI{debug: []domain.Link{}}, testLogger())
	sess, _ := newMemorySession("")

	report, err := svc.DebugStatus(context.Background(), sess)
	require.NoError(t, err)
	assert.Zero(t, report.APICount)
	assert.Empty(t, report.Recent)
}

func TestDebugStatus_APIFailureIsReported(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&fakeAPI{debugErr: errors.New("timeout")}, testLogger())
	sess, doc := newMemorySession("")
	require.NoError(t, doc.DisplayLinks(ctx, sampleLinks(2)))

	report, err := svc.DebugStatus(ctx, sess)
	require.NoError(t, err)
	assert.Error(t, report.APIError)
	assert.Equal(t, 2, report.RenderedCount)
}

type uncountableDoc struct {
	*page.Memory
}

func (uncountableDoc) Count(_ context.Context, _ string) (int, error) {
	return 0, page.ErrElementNotFound
}

func TestDebugStatus_CountFailure(t *testing.T) {
	fake := &fakeAPI{debug: sampleLinks(1)}
	svc := NewService(fake, testLogger())
	doc := uncountableDoc{Memory: page.NewMemory()}
	sess := NewSession(doc, doc, doc)

	report, err := svc.DebugStatus(context.Background(), sess)
	assert.ErrorIs(t, err, page.ErrElementNotFound)
	assert.Equal(t, 1, report.APICount, "debug fetch still runs")
}
