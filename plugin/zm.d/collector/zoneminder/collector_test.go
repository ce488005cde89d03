// SPDX-License-Identifier: GPL-3.0-or-later

package zoneminder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/module"
)

var (
	dataConfigJSON, _ = os.ReadFile("testdata/config.json")
	dataConfigYAML, _ = os.ReadFile("testdata/config.yaml")

	dataConsole130, _ = os.ReadFile("testdata/console_130.html")
	dataConsole132, _ = os.ReadFile("testdata/console_132.html")
	dataConsole134, _ = os.ReadFile("testdata/console_134.html")

	dataDaemonCheck, _  = os.ReadFile("testdata/daemonCheck.json")
	dataStates, _       = os.ReadFile("testdata/states.json")
	dataLoad, _         = os.ReadFile("testdata/getLoad.json")
	dataEvents, _       = os.ReadFile("testdata/events.json")
	dataEventsEmpty, _  = os.ReadFile("testdata/events_empty.json")
	dataMonitor130, _   = os.ReadFile("testdata/monitor_130.json")
	dataMonitor132, _   = os.ReadFile("testdata/monitor_132.json")
	dataDaemonStatus, _ = os.ReadFile("testdata/daemonStatus.json")
	dataVersion, _      = os.ReadFile("testdata/getVersion.json")
)

func Test_testDataIsValid(t *testing.T) {
	for name, data := range map[string][]byte{
		"dataConfigJSON":   dataConfigJSON,
		"dataConfigYAML":   dataConfigYAML,
		"dataConsole130":   dataConsole130,
		"dataConsole132":   dataConsole132,
		"dataConsole134":   dataConsole134,
		"dataDaemonCheck":  dataDaemonCheck,
		"dataStates":       dataStates,
		"dataLoad":         dataLoad,
		"dataEvents":       dataEvents,
		"dataEventsEmpty":  dataEventsEmpty,
		"dataMonitor130":   dataMonitor130,
		"dataMonitor132":   dataMonitor132,
		"dataDaemonStatus": dataDaemonStatus,
		"dataVersion":      dataVersion,
	} {
		require.NotNil(t, data, name)
	}
}

func TestCollector_ConfigSchema(t *testing.T) {
	require.True(t, gjson.Valid(configSchema))

	bs, err := json.Marshal(New().Configuration())
	require.NoError(t, err)
	cfg := gjson.ParseBytes(bs)

	props := gjson.Get(configSchema, "properties")
	require.True(t, props.IsObject())

	props.ForEach(func(key, _ gjson.Result) bool {
		assert.Truef(t, cfg.Get(key.String()).Exists(), "schema property '%s' is not a config option", key.String())
		return true
	})

	for _, key := range gjson.Get(configSchema, "required").Array() {
		assert.Truef(t, props.Get(key.String()).Exists(), "required '%s' is not a schema property", key.String())
	}
}

func TestCollector_ConfigurationSerialize(t *testing.T) {
	module.TestConfigurationSerialize(t, &Collector{}, dataConfigJSON, dataConfigYAML)
}

func TestCollector_Init(t *testing.T) {
	tests := map[string]struct {
		config   func(*Config)
		wantFail bool
	}{
		"success with hostname": {
			config: func(cfg *Config) { cfg.Hostname = "zm.example.com" },
		},
		"success with name derived hostname": {
			config: func(cfg *Config) { cfg.Name = "zm_example_com" },
		},
		"success with override URL": {
			config: func(cfg *Config) { cfg.URL = "https://zm.example.com/zm/" },
		},
		"fails without username": {
			wantFail: true,
			config: func(cfg *Config) {
				cfg.Hostname = "zm.example.com"
				cfg.Username = ""
			},
		},
		"fails without password": {
			wantFail: true,
			config: func(cfg *Config) {
				cfg.Hostname = "zm.example.com"
				cfg.Password = ""
			},
		},
		"fails with invalid URL": {
			wantFail: true,
			config:   func(cfg *Config) { cfg.URL = "zm.example.com/zm" },
		},
		"fails with unknown login mode": {
			wantFail: true,
			config: func(cfg *Config) {
				cfg.Hostname = "zm.example.com"
				cfg.LoginMode = "basic"
			},
		},
		"fails with unknown metric kind": {
			wantFail: true,
			config: func(cfg *Config) {
				cfg.Hostname = "zm.example.com"
				cfg.Metrics = []MetricPoint{{Name: "events", Kind: "string"}}
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			collr := New()
			collr.Username = "admin"
			collr.Password = "secret"
			test.config(&collr.Config)

			err := collr.Init(context.Background())

			if test.wantFail {
				assert.ErrorIs(t, err, ErrConfiguration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCollector_Init_DefaultMetrics(t *testing.T) {
	collr := New()
	collr.Username, collr.Password, collr.Hostname = "admin", "secret", "zm.local"
	require.NoError(t, collr.Init(context.Background()))

	assert.Len(t, collr.metrics, len(defaultDaemonMetrics))
	assert.True(t, collr.Charts().Has("load"))
	assert.False(t, collr.Charts().Has("monitor_fps"))

	collr = New()
	collr.Username, collr.Password, collr.Hostname, collr.MonitorID = "admin", "secret", "zm.local", "3"
	require.NoError(t, collr.Init(context.Background()))

	assert.Len(t, collr.metrics, len(defaultMonitorMetrics))
	assert.True(t, collr.Charts().Has("monitor_fps"))
	assert.False(t, collr.Charts().Has("load"))
}

func TestCollector_Charts(t *testing.T) {
	assert.Nil(t, New().Charts())
}

func TestCollector_Cleanup(t *testing.T) {
	assert.NotPanics(t, func() { New().Cleanup(context.Background()) })

	collr, _, cleanup := prepareCaseDaemon130(t)
	defer cleanup()
	assert.NotPanics(t, func() { collr.Cleanup(context.Background()) })
}

func TestCollector_MissingPasswordMakesNoRequests(t *testing.T) {
	srv := newFakeZM(t, fakeZMConfig{console: dataConsole130})
	defer srv.Close()

	collr := New()
	collr.URL = srv.URL + "/zm/"
	collr.Username = "admin"

	ctx := context.Background()
	assert.ErrorIs(t, collr.Init(ctx), ErrConfiguration)
	assert.Error(t, collr.Check(ctx))
	assert.Nil(t, collr.Collect(ctx))
	_, err := collr.CollectSnapshot(ctx)
	assert.ErrorIs(t, err, ErrConfiguration)

	assert.Zero(t, srv.requests.Load())
}

func TestCollector_Check(t *testing.T) {
	tests := map[string]struct {
		prepare  func(t *testing.T) (*Collector, *fakeZM, func())
		wantFail bool
	}{
		"daemon 1.30":               {prepare: prepareCaseDaemon130},
		"monitor 1.32":              {prepare: prepareCaseMonitor132},
		"invalid credentials":       {prepare: prepareCaseInvalidCredentials, wantFail: true},
		"fetch failure":             {prepare: prepareCaseMissingEndpoint, wantFail: true},
		"connection refused":        {prepare: prepareCaseConnectionRefused, wantFail: true},
		"legacy only server (auto)": {prepare: prepareCaseLegacyOnly},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			collr, _, cleanup := test.prepare(t)
			defer cleanup()

			if test.wantFail {
				assert.Error(t, collr.Check(context.Background()))
			} else {
				assert.NoError(t, collr.Check(context.Background()))
			}
		})
	}
}

func TestCollector_Collect(t *testing.T) {
	tests := map[string]struct {
		prepare         func(t *testing.T) (*Collector, *fakeZM, func())
		wantMetrics     map[string]int64
		skipChartsCheck bool
	}{
		"daemon 1.30": {
			prepare: prepareCaseDaemon130,
			wantMetrics: map[string]int64{
				"result":    1,
				"state":     2,
				"load-1":    1200,
				"load-5":    800,
				"load-15":   500,
				"disk":      41,
				"devshm":    3,
				"bandwidth": 1500000,
				"events":    4,
			},
		},
		"daemon 1.32 with no events": {
			prepare: prepareCaseDaemon132NoEvents,
			wantMetrics: map[string]int64{
				"result":    1,
				"state":     2,
				"load-1":    1200,
				"load-5":    800,
				"load-15":   500,
				"disk":      45,
				"devshm":    12,
				"bandwidth": 200,
				"events":    0,
			},
		},
		"monitor 1.32": {
			prepare: prepareCaseMonitor132,
			wantMetrics: map[string]int64{
				"online":           0,
				"enabled":          1,
				"status":           1,
				"events":           4,
				"CaptureFPS":       10000,
				"AnalysisFPS":      5000,
				"CaptureBandwidth": 123456,
			},
		},
		"monitor 1.30": {
			prepare:         prepareCaseMonitor130,
			skipChartsCheck: true,
			wantMetrics: map[string]int64{
				"online":      0,
				"enabled":     1,
				"status":      0,
				"events":      4,
				"CaptureFPS":  9980,
				"AnalysisFPS": 4990,
			},
		},
		"monitor 1.34": {
			prepare: prepareCaseMonitor134,
			wantMetrics: map[string]int64{
				"online":           1,
				"enabled":          1,
				"status":           1,
				"events":           4,
				"CaptureFPS":       10000,
				"AnalysisFPS":      5000,
				"CaptureBandwidth": 123456,
			},
		},
		"monitor not on console page": {
			prepare:         prepareCaseMonitorNoMarker,
			skipChartsCheck: true,
			wantMetrics: map[string]int64{
				"enabled":          1,
				"status":           1,
				"events":           4,
				"CaptureFPS":       10000,
				"AnalysisFPS":      5000,
				"CaptureBandwidth": 123456,
			},
		},
		"invalid credentials": {
			prepare: prepareCaseInvalidCredentials,
		},
		"fetch failure": {
			prepare: prepareCaseMissingEndpoint,
		},
		"connection refused": {
			prepare: prepareCaseConnectionRefused,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			collr, _, cleanup := test.prepare(t)
			defer cleanup()

			mx := collr.Collect(context.Background())

			assert.Equal(t, test.wantMetrics, mx)
			if len(test.wantMetrics) > 0 && !test.skipChartsCheck {
				module.TestMetricsHasAllChartsDims(t, collr.Charts(), mx)
			}
		})
	}
}

func TestCollector_CollectSnapshot_EndToEnd(t *testing.T) {
	collr, srv, cleanup := prepareCaseDaemon130(t)
	defer cleanup()
	collr.metrics = []MetricPoint{
		{Name: "result"}, {Name: "load-1"}, {Name: "load-5"}, {Name: "load-15"}, {Name: "events"},
	}

	snap, err := collr.CollectSnapshot(context.Background())
	require.NoError(t, err)

	want := Snapshot{
		{Name: "result", Kind: KindInt, Int: 1, Type: "N"},
		{Name: "load-1", Kind: KindFloat, Float: 1.2, Type: "N"},
		{Name: "load-5", Kind: KindFloat, Float: 0.8, Type: "N"},
		{Name: "load-15", Kind: KindFloat, Float: 0.5, Type: "N"},
		{Name: "events", Kind: KindInt, Int: 4, Type: "N"},
	}
	assert.Equal(t, want, snap)
	assert.True(t, srv.loggedOut.Load())

	values, err := collr.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"result": int64(1), "load-1": 1.2, "load-5": 0.8, "load-15": 0.5, "events": int64(4),
	}, values)
}

func TestCollector_CollectSnapshot_ErrorKinds(t *testing.T) {
	tests := map[string]struct {
		prepare       func(t *testing.T) (*Collector, *fakeZM, func())
		wantErr       error
		wantLoggedOut bool
	}{
		"invalid credentials": {
			prepare: prepareCaseInvalidCredentials,
			wantErr: ErrAuthentication,
		},
		"no session cookie": {
			prepare: prepareCaseNoCookies,
			wantErr: ErrAuthentication,
		},
		"fetch failure discards the pass and logs out": {
			prepare:       prepareCaseMissingEndpoint,
			wantErr:       ErrTransport,
			wantLoggedOut: true,
		},
		"invalid JSON": {
			prepare:       prepareCaseInvalidJSON,
			wantErr:       ErrTransport,
			wantLoggedOut: true,
		},
		"connection refused": {
			prepare: prepareCaseConnectionRefused,
			wantErr: ErrTransport,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			collr, srv, cleanup := test.prepare(t)
			defer cleanup()

			snap, err := collr.CollectSnapshot(context.Background())

			assert.ErrorIs(t, err, test.wantErr)
			assert.Nil(t, snap)
			if srv != nil {
				assert.Equal(t, test.wantLoggedOut, srv.loggedOut.Load())
			}
		})
	}
}

func TestCollector_VersionLabel(t *testing.T) {
	collr, srv, cleanup := prepareCaseDaemon130(t)
	defer cleanup()

	require.NoError(t, collr.Check(context.Background()))
	require.NoError(t, collr.Check(context.Background()))

	assert.Equal(t, "1.34.22", collr.version)
	assert.Equal(t, int64(1), srv.versionRequests.Load())
	for _, chart := range *collr.Charts() {
		assert.Contains(t, chart.Labels, module.Label{Key: "zm_version", Value: "1.34.22"}, chart.ID)
	}
}

func TestCollector_LoginModes(t *testing.T) {
	tests := map[string]struct {
		serverLegacyOnly bool
		mode             LoginMode
		wantFail         bool
		wantLogins       int64
	}{
		"auto on stateful server":     {mode: LoginAuto, wantLogins: 1},
		"auto on legacy server":       {mode: LoginAuto, serverLegacyOnly: true, wantLogins: 2},
		"stateful on legacy server":   {mode: LoginStateful, serverLegacyOnly: true, wantFail: true, wantLogins: 1},
		"legacy on legacy server":     {mode: LoginLegacy, serverLegacyOnly: true, wantLogins: 1},
		"stateful on stateful server": {mode: LoginStateful, wantLogins: 1},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			srv := newFakeZM(t, fakeZMConfig{console: dataConsole130, legacyOnly: test.serverLegacyOnly})
			defer srv.Close()

			collr := newTestCollector(srv, "")
			collr.LoginMode = test.mode
			require.NoError(t, collr.Init(context.Background()))

			_, err := collr.CollectSnapshot(context.Background())

			if test.wantFail {
				assert.ErrorIs(t, err, ErrAuthentication)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, test.wantLogins, srv.logins.Load())
		})
	}
}

func TestCollector_ConcurrentPassesDoNotShareSessions(t *testing.T) {
	collr, srv, cleanup := prepareCaseDaemon130(t)
	defer cleanup()

	sessions := make([]*session, 5)
	for i := range sessions {
		sessions[i] = newSessionForTest(t, collr)
	}

	errs := make([]error, len(sessions))
	var wg sync.WaitGroup
	for i, sess := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = sess.login(context.Background(), LoginStateful, "admin", "secret")
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i, sess := range sessions {
		require.NoError(t, errs[i])
		cookies := sess.client.Jar.Cookies(sess.base)
		require.Len(t, cookies, 1)
		seen[cookies[0].Value] = true
	}

	assert.Len(t, seen, len(sessions))
	assert.Equal(t, int64(len(sessions)), srv.sessions.Load())
}

func newSessionForTest(t *testing.T, collr *Collector) *session {
	sess, err := newSession(collr.httpClient, collr.RequestConfig, collr.baseURL, collr.Logger)
	require.NoError(t, err)
	return sess
}

func newTestCollector(srv *fakeZM, monitorID string) *Collector {
	collr := New()
	collr.URL = srv.URL + "/zm/"
	collr.Username = "admin"
	collr.Password = "secret"
	collr.MonitorID = monitorID
	return collr
}

func prepareCase(t *testing.T, cfg fakeZMConfig, monitorID string) (*Collector, *fakeZM, func()) {
	t.Helper()
	srv := newFakeZM(t, cfg)

	collr := newTestCollector(srv, monitorID)
	require.NoError(t, collr.Init(context.Background()))

	return collr, srv, srv.Close
}

func prepareCaseDaemon130(t *testing.T) (*Collector, *fakeZM, func()) {
	return prepareCase(t, fakeZMConfig{console: dataConsole130}, "")
}

func prepareCaseDaemon132NoEvents(t *testing.T) (*Collector, *fakeZM, func()) {
	return prepareCase(t, fakeZMConfig{
		console:   dataConsole132,
		overrides: map[string][]byte{urlPathEventsDecoded: dataEventsEmpty},
	}, "")
}

func prepareCaseMonitor130(t *testing.T) (*Collector, *fakeZM, func()) {
	return prepareCase(t, fakeZMConfig{
		console:   dataConsole130,
		overrides: map[string][]byte{"/zm/api/monitors/3.json": dataMonitor130},
	}, "3")
}

func prepareCaseMonitor132(t *testing.T) (*Collector, *fakeZM, func()) {
	return prepareCase(t, fakeZMConfig{console: dataConsole132}, "3")
}

func prepareCaseMonitor134(t *testing.T) (*Collector, *fakeZM, func()) {
	return prepareCase(t, fakeZMConfig{console: dataConsole134}, "3")
}

func prepareCaseMonitorNoMarker(t *testing.T) (*Collector, *fakeZM, func()) {
	return prepareCase(t, fakeZMConfig{console: []byte("<html><body>Console</body></html>")}, "3")
}

func prepareCaseLegacyOnly(t *testing.T) (*Collector, *fakeZM, func()) {
	return prepareCase(t, fakeZMConfig{console: dataConsole130, legacyOnly: true}, "")
}

func prepareCaseInvalidCredentials(t *testing.T) (*Collector, *fakeZM, func()) {
	collr, srv, cleanup := prepareCase(t, fakeZMConfig{console: dataConsole130}, "")
	collr.Password = "wrong"
	return collr, srv, cleanup
}

func prepareCaseNoCookies(t *testing.T) (*Collector, *fakeZM, func()) {
	return prepareCase(t, fakeZMConfig{console: dataConsole130, noCookies: true}, "")
}

func prepareCaseMissingEndpoint(t *testing.T) (*Collector, *fakeZM, func()) {
	return prepareCase(t, fakeZMConfig{
		console:   dataConsole130,
		overrides: map[string][]byte{"/zm/api/states.json": nil},
	}, "")
}

func prepareCaseInvalidJSON(t *testing.T) (*Collector, *fakeZM, func()) {
	return prepareCase(t, fakeZMConfig{
		console:   dataConsole130,
		overrides: map[string][]byte{"/zm/api/host/getLoad.json": []byte("<html>Not Found</html>")},
	}, "")
}

func prepareCaseConnectionRefused(t *testing.T) (*Collector, *fakeZM, func()) {
	t.Helper()
	collr := New()
	collr.URL = "http://127.0.0.1:38001/zm/"
	collr.Username = "admin"
	collr.Password = "secret"
	require.NoError(t, collr.Init(context.Background()))

	return collr, nil, func() {}
}

const (
	fakeSessionCookie    = "ZMSESSID"
	urlPathEventsDecoded = "/zm/api/events/consoleEvents/300 second.json"
)

type fakeZMConfig struct {
	console    []byte
	legacyOnly bool
	noCookies  bool
	// a nil body answers 404
	overrides map[string][]byte
}

type fakeZM struct {
	*httptest.Server

	requests        atomic.Int64
	logins          atomic.Int64
	sessions        atomic.Int64
	versionRequests atomic.Int64
	loggedOut       atomic.Bool
}

func newFakeZM(t *testing.T, cfg fakeZMConfig) *fakeZM {
	t.Helper()

	files := make(map[string][]byte)
	files["/zm/api/host/getVersion.json"] = dataVersion
	files["/zm/api/host/daemonCheck.json"] = dataDaemonCheck
	files["/zm/api/states.json"] = dataStates
	files["/zm/api/host/getLoad.json"] = dataLoad
	files[urlPathEventsDecoded] = dataEvents
	files["/zm/api/monitors/3.json"] = dataMonitor132
	files["/zm/api/monitors/daemonStatus/id:3/daemon:zmc.json"] = dataDaemonStatus
	for k, v := range cfg.overrides {
		files[k] = v
	}

	zm := &fakeZM{}
	var sessionID atomic.Int64

	zm.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zm.requests.Add(1)
		q := r.URL.Query()

		if r.URL.Path == "/zm/index.php" && q.Get("action") == "login" {
			zm.logins.Add(1)
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if q.Get("username") != "admin" || q.Get("password") != "secret" {
				_, _ = w.Write([]byte("<div class=\"alert\">Invalid username or password</div>"))
				return
			}
			stateful := q.Get("view") == "login" && q.Get("stateful") == "1"
			if cfg.noCookies || (cfg.legacyOnly && stateful) {
				_, _ = w.Write([]byte("<html>Login</html>"))
				return
			}
			zm.sessions.Add(1)
			http.SetCookie(w, &http.Cookie{
				Name:  fakeSessionCookie,
				Value: strconv.FormatInt(sessionID.Add(1), 10),
				Path:  "/",
			})
			if stateful {
				http.Redirect(w, r, "/zm/index.php?view=console", http.StatusFound)
				return
			}
			_, _ = w.Write(cfg.console)
			return
		}

		if _, err := r.Cookie(fakeSessionCookie); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		if r.URL.Path == "/zm/index.php" {
			switch {
			case q.Get("action") == "logout" && r.Method == http.MethodPost:
				zm.loggedOut.Store(true)
				_, _ = w.Write([]byte("<html>Login</html>"))
			case q.Get("view") == "console":
				_, _ = w.Write(cfg.console)
			default:
				w.WriteHeader(http.StatusNotFound)
			}
			return
		}

		if r.URL.Path == "/zm/api/host/getVersion.json" {
			zm.versionRequests.Add(1)
		}

		body, ok := files[r.URL.Path]
		if !ok || body == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))

	return zm
}
