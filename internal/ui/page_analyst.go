package ui

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gomponents "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"

	"github.com/kdl-rgb/bytells/internal/analyst"
	"github.com/kdl-rgb/bytells/internal/auth"
	"github.com/kdl-rgb/bytells/internal/nl2sql"
)

type analystForm struct {
	Prompt string
	Mode   nl2sql.Mode
}

// analystRun is what the console shows after a run. Outcome is nil before the
// first run.
type analystRun struct {
	Outcome  *analyst.Outcome
	Statuses []analyst.Status
	Failure  string
}

func (h *Handler) AnalystPage(w http.ResponseWriter, _ *http.Request) {
	if h.Analyst == nil {
		renderHTML(w, http.StatusServiceUnavailable, errorPage("Analyst Unavailable", "The AI analyst is not configured."))
		return
	}
	renderHTML(w, http.StatusOK, analystPage(analystForm{Mode: nl2sql.ModeAuto}, analystRun{}))
}

func (h *Handler) AnalystRun(w http.ResponseWriter, r *http.Request) {
	if h.Analyst == nil {
		renderHTML(w, http.StatusServiceUnavailable, errorPage("Analyst Unavailable", "The AI analyst is not configured."))
		return
	}
	if identity, ok := auth.IdentityFromContext(r.Context()); ok && !identity.HasRole(auth.RoleAnalyst) {
		renderHTML(w, http.StatusForbidden, errorPage("Forbidden", "Running questions requires the analyst role."))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		renderHTML(w, http.StatusBadRequest, errorPage("Bad Request", "Invalid form submission."))
		return
	}
	form := analystForm{Prompt: strings.TrimSpace(r.PostForm.Get("prompt"))}
	mode, err := nl2sql.ParseMode(r.PostForm.Get("mode"))
	if err != nil {
		renderHTML(w, http.StatusBadRequest, analystPage(form, analystRun{Failure: err.Error()}))
		return
	}
	form.Mode = mode
	if form.Prompt == "" {
		renderHTML(w, http.StatusBadRequest, analystPage(form, analystRun{Failure: "Please enter a question."}))
		return
	}

	sink := &analyst.Recorder{}
	outcome, err := h.Analyst.Run(r.Context(), nl2sql.Request{
		Question: form.Prompt,
		APIKey:   r.PostForm.Get("api_key"),
		Mode:     form.Mode,
	}, sink)
	run := analystRun{Outcome: &outcome, Statuses: sink.Statuses()}
	status := http.StatusOK
	if err != nil {
		h.Logger.WarnContext(r.Context(), "analyst run failed", slog.String("run_id", outcome.RunID), slog.Any("error", err))
		run.Failure = outcome.Status.Text
		if run.Failure == "" || outcome.Status.Level != analyst.LevelError {
			run.Failure = "Error: " + err.Error()
		}
		status = runFailureStatus(err)
	}
	renderHTML(w, status, analystPage(form, run))
}

func runFailureStatus(err error) int {
	if kind, ok := nl2sql.KindOf(err); ok {
		switch kind {
		case nl2sql.KindMissingCredentials:
			return http.StatusBadRequest
		case nl2sql.KindInvalidCredentials:
			return http.StatusUnauthorized
		case nl2sql.KindRateLimited:
			return http.StatusTooManyRequests
		case nl2sql.KindNonSelectBlocked:
			return http.StatusUnprocessableEntity
		default:
			return http.StatusBadGateway
		}
	}
	if errors.Is(err, nl2sql.ErrRemoteDisabled) {
		return http.StatusNotImplemented
	}
	return http.StatusUnprocessableEntity
}

func analystPage(form analystForm, run analystRun) gomponents.Node {
	samples := make([]gomponents.Node, 0, len(nl2sql.SamplePrompts))
	for _, prompt := range nl2sql.SamplePrompts {
		samples = append(samples, html.Button(
			html.Type("submit"),
			html.Name("prompt"),
			html.Value(prompt),
			html.Class("sample"),
			gomponents.Text(prompt),
		))
	}

	modes := make([]gomponents.Node, 0, 3)
	for _, mode := range []nl2sql.Mode{nl2sql.ModeAuto, nl2sql.ModeRemote, nl2sql.ModeLocal} {
		if mode == form.Mode {
			modes = append(modes, html.Option(html.Value(string(mode)), html.Selected(), gomponents.Text(string(mode))))
			continue
		}
		modes = append(modes, html.Option(html.Value(string(mode)), gomponents.Text(string(mode))))
	}

	return appPage("AI Analyst", "analyst",
		card("Ask a Question",
			html.Form(
				html.Method("post"),
				html.Action("/analyst/run"),
				html.Label(html.For("api_key"), gomponents.Text("Groq API key")),
				html.Input(html.Type("password"), html.ID("api_key"), html.Name("api_key"), html.AutoComplete("off"), html.Placeholder("gsk_...")),
				html.Label(html.For("prompt"), gomponents.Text("Question")),
				html.Textarea(html.ID("prompt"), html.Name("prompt"), html.Rows("3"), gomponents.Text(form.Prompt)),
				html.Label(html.For("mode"), gomponents.Text("Mode")),
				html.Select(html.ID("mode"), html.Name("mode"), gomponents.Group(modes)),
				html.Div(html.Class("button-row"), html.Button(html.Type("submit"), html.Class("primary"), gomponents.Text("Generate & Run"))),
			),
			html.Form(
				html.Method("post"),
				html.Action("/analyst/run"),
				html.Class("samples"),
				html.P(html.Class("muted"), gomponents.Text("Sample questions")),
				gomponents.Group(samples),
			),
		),
		runNode(run),
	)
}

func runNode(run analystRun) gomponents.Node {
	statuses := make([]gomponents.Node, 0, len(run.Statuses))
	for _, status := range run.Statuses {
		statuses = append(statuses, html.Li(html.Class("status status-"+string(status.Level)), gomponents.Text(status.Text)))
	}

	if run.Outcome == nil || run.Outcome.SQL == "" {
		if run.Failure == "" {
			return html.P(html.Class("muted"), gomponents.Text("Ask a question to generate SQL and see results."))
		}
		return card("Result",
			html.Ul(html.Class("status-log"), gomponents.Group(statuses)),
			html.P(html.Class("status status-error"), gomponents.Text(run.Failure)),
		)
	}

	outcome := run.Outcome
	body := []gomponents.Node{
		html.Ul(html.Class("status-log"), gomponents.Group(statuses)),
		html.H3(gomponents.Text("Generated SQL")),
		html.Pre(html.Class("sql"), html.Code(gomponents.Text(outcome.SQL))),
	}
	if run.Failure != "" {
		body = append(body, html.P(html.Class("status status-error"), gomponents.Text(run.Failure)))
		return card("Result", body...)
	}
	body = append(body,
		html.P(html.Class("status status-"+string(outcome.Status.Level)), gomponents.Text(outcome.Status.Text)),
		chartNode(outcome.Chart),
		resultTable(outcome.Result),
	)
	return card("Result", body...)
}
