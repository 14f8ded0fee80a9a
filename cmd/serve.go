package main

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/frc-county-map/internal/apperr"
	"github.com/sells-group/frc-county-map/internal/config"
	"github.com/sells-group/frc-county-map/internal/pipeline"
	"github.com/sells-group/frc-county-map/internal/progress"
	"github.com/sells-group/frc-county-map/internal/region"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web form front-end",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initRunEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close() //nolint:errcheck

		s := newWebServer(ctx, env.Regions, func(ctx context.Context, rc config.RunConfig, r progress.Reporter) (*pipeline.Result, error) {
			return env.Pipeline(rc).Run(ctx, r)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           s.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		s.wait()
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// runFunc executes one pipeline run.
type runFunc func(ctx context.Context, rc config.RunConfig, r progress.Reporter) (*pipeline.Result, error)

// webRun is one run started from the form.
type webRun struct {
	ID      string
	Year    int
	State   string
	Started time.Time
	Log     *progress.Log

	// guarded by webServer.mu
	done   bool
	errMsg string
	result *pipeline.Result
}

// webServer serves the form front-end. Only one run is active at a time.
type webServer struct {
	ctx      context.Context
	regions  *region.Table
	run      runFunc
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	active string
	runs   map[string]*webRun
	wg     sync.WaitGroup
}

func newWebServer(ctx context.Context, regions *region.Table, run runFunc) *webServer {
	return &webServer{
		ctx:      ctx,
		regions:  regions,
		run:      run,
		interval: pollInterval(),
		now:      time.Now,
		runs:     make(map[string]*webRun),
	}
}

// Routes returns the HTTP handler.
func (s *webServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleForm)
	r.Post("/runs", s.handleStart)
	r.Get("/runs/{id}", s.handleStatus)
	r.Get("/runs/{id}/messages", s.handleMessages)
	return r
}

func (s *webServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *webServer) handleForm(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = formPage.Execute(w, map[string]any{
		"Year":   cfg.Run.Year,
		"State":  cfg.Run.State,
		"HasKey": cfg.TBA.Key != "",
		"Active": active,
	})
}

func (s *webServer) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form"})
		return
	}

	o := config.RunOverrides{
		APIKey: r.PostFormValue("key"),
		State:  r.PostFormValue("state"),
	}
	if y := strings.TrimSpace(r.PostFormValue("year")); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid year %q", y)})
			return
		}
		o.Year = year
	}

	rc, err := config.NewRunConfig(cfg, s.regions, o, s.now())
	if err != nil {
		status := http.StatusInternalServerError
		if apperr.IsConfig(err) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.mu.Lock()
	if s.active != "" {
		active := s.active
		s.mu.Unlock()
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a run is already in progress", "run_id": active})
		return
	}
	wr := &webRun{
		ID:      uuid.NewString(),
		Year:    rc.Year,
		State:   rc.State.Code,
		Started: s.now(),
		Log:     progress.NewLog(500),
	}
	s.runs[wr.ID] = wr
	s.active = wr.ID
	s.mu.Unlock()

	s.wg.Add(1)
	go s.execute(wr, rc)

	http.Redirect(w, r, "/runs/"+wr.ID, http.StatusSeeOther)
}

// execute runs the pipeline and copies its progress into the run's log.
func (s *webServer) execute(wr *webRun, rc config.RunConfig) {
	defer s.wg.Done()
	log := zap.L().With(zap.String("component", "serve"), zap.String("web_run", wr.ID))

	q := progress.NewQueue()
	pollCtx, stopPoll := context.WithCancel(context.Background())
	polled := make(chan struct{})
	go func() {
		defer close(polled)
		q.Poll(pollCtx, s.interval, func(m progress.Message) { wr.Log.Append(m) })
	}()

	res, err := s.safeRun(rc, q)
	stopPoll()
	<-polled

	s.mu.Lock()
	defer s.mu.Unlock()
	wr.done = true
	wr.result = res
	if err != nil {
		wr.errMsg = err.Error()
		log.Error("run failed", zap.String("kind", apperr.Kind(err)), zap.Error(err))
	} else {
		log.Info("run complete", zap.String("run_id", res.RunID))
	}
	s.active = ""
}

// safeRun calls the run function, turning a panic into an error so the
// server keeps accepting runs.
func (s *webServer) safeRun(rc config.RunConfig, q *progress.Queue) (res *pipeline.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			zap.L().Error("serve: run panicked", zap.Any("panic", p), zap.Stack("stack"))
			res, err = nil, eris.Errorf("run panicked: %v", p)
		}
	}()
	return s.run(s.ctx, rc, q)
}

// wait blocks until every started run has finished.
func (s *webServer) wait() {
	s.wg.Wait()
}

// runView is the status of a web run as shown on the page and in JSON.
type runView struct {
	ID       string             `json:"id"`
	RunID    string             `json:"run_id,omitempty"`
	Year     int                `json:"year"`
	State    string             `json:"state"`
	Status   string             `json:"status"`
	Error    string             `json:"error,omitempty"`
	Dropped  []string           `json:"dropped_counties,omitempty"`
	Outputs  []string           `json:"outputs,omitempty"`
	Messages []progress.Message `json:"messages"`
}

func (s *webServer) view(id string) (runView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wr, ok := s.runs[id]
	if !ok {
		return runView{}, false
	}
	v := runView{
		ID:       wr.ID,
		Year:     wr.Year,
		State:    wr.State,
		Status:   "running",
		Messages: wr.Log.Messages(),
	}
	if wr.done {
		v.Status = "complete"
		if wr.errMsg != "" {
			v.Status = "failed"
			v.Error = wr.errMsg
		}
	}
	if wr.result != nil {
		v.RunID = wr.result.RunID
		v.Dropped = wr.result.Dropped
		v.Outputs = wr.result.Outputs
	}
	return v, true
}

func (s *webServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = statusPage.Execute(w, v)
}

func (s *webServer) handleMessages(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var formPage = template.Must(template.New("form").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>FRC teams by county</title></head>
<body>
<h1>FRC teams by county</h1>
{{if .Active}}<p>A run is in progress: <a href="/runs/{{.Active}}">view status</a></p>{{end}}
<form method="post" action="/runs">
<label>TBA API key <input type="password" name="key"{{if not .HasKey}} required{{end}}></label><br>
<label>Season year <input type="number" name="year" value="{{.Year}}"></label><br>
<label>State <input type="text" name="state" value="{{.State}}"></label><br>
<button type="submit">Build map</button>
</form>
</body></html>
`))

var statusPage = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8">
{{if eq .Status "running"}}<meta http-equiv="refresh" content="2">{{end}}
<title>Run {{.ID}}</title></head>
<body>
<h1>{{.State}} {{.Year}}: {{.Status}}</h1>
{{if .Error}}<p><strong>Error:</strong> {{.Error}}</p>{{end}}
{{if .Dropped}}<p>Counties with teams but no shape: {{range $i, $c := .Dropped}}{{if $i}}, {{end}}{{$c}}{{end}}</p>{{end}}
{{if .Outputs}}<ul>{{range .Outputs}}<li>{{.}}</li>{{end}}</ul>{{end}}
<pre>{{range .Messages}}{{.Time.Format "15:04:05"}} {{.}}
{{end}}</pre>
<p><a href="/">New run</a></p>
</body></html>
`))
