package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/schoolops/campus/pkg/sdk"
	"golang.org/x/sync/errgroup"
)

const (
	routeDashboard     = "dashboard"
	routeProfile       = "profile"
	routeStudents      = "students"
	routeStudentDetail = "student-detail"
	routeUsers         = "users-admin"
	routeRoles         = "roles-admin"

	actionDeleteStudent = "student:delete"
	actionDeleteUser    = "user:delete"
	actionToggleUser    = "user:toggle-status"
	actionDeleteRole    = "role:delete"
)

var routeLabels = map[string]string{
	"login":            "Log in",
	routeDashboard:     "Dashboard",
	routeProfile:       "Profile",
	routeStudents:      "Students",
	routeStudentDetail: "Student",
	routeUsers:         "Users",
	routeRoles:         "Roles",
}

func label(routeID string) string {
	if l, ok := routeLabels[routeID]; ok {
		return l
	}
	return routeID
}

type navLink struct {
	Label string
	Path  string
}

// pageView is the value every template receives.
type pageView struct {
	Title   string
	Session *sdk.Session
	Nav     []navLink
	Notice  string
	Error   string
	Data    any
}

// nav lists the screens session may open that take no parameters.
func (s *Server) nav(session *sdk.Session) []navLink {
	if session == nil {
		return nil
	}
	var links []navLink
	for _, route := range s.guard.Routes() {
		if route.Path == "" || strings.Contains(route.Path, "{") || route.Access == sdk.AccessPublicOnly {
			continue
		}
		if s.guard.CanAccessRoute(session, route.ID) {
			links = append(links, navLink{Label: label(route.ID), Path: route.Path})
		}
	}
	return links
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, view pageView) {
	view.Session = sessionFrom(r.Context())
	view.Nav = s.nav(view.Session)
	if view.Notice == "" {
		view.Notice = r.URL.Query().Get("notice")
	}
	if err := s.views.render(w, status, page, view); err != nil {
		s.logger.Error("render page", slog.String("page", page), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, title, detail string) {
	s.render(w, r, status, "error", pageView{Title: title, Data: detail})
}

// apiError renders a failed API call. A 401 has already ended the session
// in the pipeline, so the caller is sent to log in again.
func (s *Server) apiError(w http.ResponseWriter, r *http.Request, action string, err error) {
	switch {
	case errors.Is(err, sdk.ErrUnauthorized):
		http.Redirect(w, r, s.loginURL(), http.StatusSeeOther)
	case errors.Is(err, sdk.ErrForbidden):
		s.renderError(w, r, http.StatusForbidden, "Access denied", fmt.Sprintf("You do not have permission to %s.", action))
	case errors.Is(err, sdk.ErrNotFound):
		s.renderError(w, r, http.StatusNotFound, "Not found", "The record no longer exists.")
	case errors.Is(err, context.DeadlineExceeded):
		s.renderError(w, r, http.StatusGatewayTimeout, "Timed out", "The back office took too long to answer.")
	default:
		s.logger.Error("api call failed", slog.String("action", action), slog.Any("error", err))
		s.renderError(w, r, http.StatusBadGateway, "Server unavailable", "The back office is unavailable. Try again later.")
	}
}

func redirectWithNotice(w http.ResponseWriter, r *http.Request, path, notice string) {
	http.Redirect(w, r, path+"?"+url.Values{"notice": {notice}}.Encode(), http.StatusSeeOther)
}

func (s *Server) pageHandler(route sdk.RouteRule) http.HandlerFunc {
	switch route.ID {
	case routeDashboard:
		return s.dashboard
	case routeProfile:
		return s.profile
	case routeStudents:
		return s.students
	case routeStudentDetail:
		return s.studentDetail
	case routeUsers:
		return s.users
	case routeRoles:
		return s.roles
	}
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, r, http.StatusOK, "page", pageView{Title: label(route.ID)})
	}
}

type loginView struct {
	Action   string
	Username string
	Expired  bool
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login", pageView{
		Title: "Log in",
		Data:  loginView{Action: r.URL.Path, Expired: r.URL.Query().Get("expired") == "1"},
	})
}

func (s *Server) loginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Bad request", "The login form could not be read.")
		return
	}
	username := strings.TrimSpace(r.PostFormValue("username"))

	_, err := s.ctrl.Login(r.Context(), username, r.PostFormValue("password"))
	if err == nil {
		http.Redirect(w, r, s.path(s.guard.Policy().LandingRoute), http.StatusSeeOther)
		return
	}

	status, message := loginFailure(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("console login failed", slog.Any("error", err))
	}
	s.render(w, r, status, "login", pageView{
		Title: "Log in",
		Error: message,
		Data:  loginView{Action: r.URL.Path, Username: username},
	})
}

// loginFailure maps a failed login onto a status and a message for the form.
func loginFailure(err error) (int, string) {
	var loginErr *sdk.LoginError
	switch {
	case errors.Is(err, sdk.ErrCredentialsRequired):
		return http.StatusBadRequest, "Enter your username and password."
	case errors.Is(err, sdk.ErrInvalidCredentials):
		if errors.As(err, &loginErr) && loginErr.Reason != "" {
			return http.StatusUnauthorized, loginErr.Reason
		}
		return http.StatusUnauthorized, "Invalid username or password."
	case errors.Is(err, sdk.ErrSuperseded):
		return http.StatusConflict, "The session changed while logging in. Try again."
	default:
		return http.StatusServiceUnavailable, "The server is unavailable. Try again later."
	}
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Logout(r.Context()); err != nil {
		s.logger.Warn("stored session could not be removed", slog.Any("error", err))
	}
	http.Redirect(w, r, s.path(s.guard.Policy().LoginRoute), http.StatusSeeOther)
}

type countLink struct {
	Label string
	Path  string
	Count int
}

type dashboardView struct {
	Counts []countLink
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	sources := []struct {
		routeID string
		count   func(context.Context) (int, error)
	}{
		{routeStudents, func(ctx context.Context) (int, error) {
			list, err := s.api.ListStudents(ctx)
			return len(list), err
		}},
		{routeUsers, func(ctx context.Context) (int, error) {
			list, err := s.api.ListUsers(ctx)
			return len(list), err
		}},
		{routeRoles, func(ctx context.Context) (int, error) {
			list, err := s.api.ListRoles(ctx)
			return len(list), err
		}},
	}

	results := make([]*countLink, len(sources))
	g, ctx := errgroup.WithContext(r.Context())
	for i, src := range sources {
		path, ok := s.routePath(src.routeID)
		if !ok || !s.guard.CanAccessRoute(session, src.routeID) {
			continue
		}
		g.Go(func() error {
			n, err := src.count(ctx)
			if errors.Is(err, sdk.ErrForbidden) {
				s.logger.Debug("dashboard tile refused by the server", slog.String("route", src.routeID))
				return nil
			}
			if err != nil {
				return err
			}
			results[i] = &countLink{Label: label(src.routeID), Path: path, Count: n}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.apiError(w, r, "load the dashboard", err)
		return
	}

	view := dashboardView{}
	for _, c := range results {
		if c != nil {
			view.Counts = append(view.Counts, *c)
		}
	}
	s.render(w, r, http.StatusOK, "dashboard", pageView{Title: label(routeDashboard), Data: view})
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	user, err := s.api.GetUserByUsername(r.Context(), session.Username)
	if err != nil {
		s.apiError(w, r, "view your profile", err)
		return
	}
	s.render(w, r, http.StatusOK, "profile", pageView{Title: label(routeProfile), Data: user})
}

type studentRow struct {
	Student    sdk.Student
	Href       string
	DeleteHref string
}

func (s *Server) students(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	list, err := s.api.ListStudents(r.Context())
	if err != nil {
		s.apiError(w, r, "list students", err)
		return
	}

	detail, hasDetail := s.routePath(routeStudentDetail)
	canView := hasDetail && s.guard.CanAccessRoute(session, routeStudentDetail)
	canDelete := hasDetail && s.guard.CanPerformAction(session, actionDeleteStudent)

	rows := make([]studentRow, 0, len(list))
	for _, st := range list {
		row := studentRow{Student: st}
		if canView {
			row.Href = pathWithID(detail, st.ID)
		}
		if canDelete {
			row.DeleteHref = pathWithID(detail, st.ID) + "/delete"
		}
		rows = append(rows, row)
	}
	s.render(w, r, http.StatusOK, "students", pageView{Title: label(routeStudents), Data: rows})
}

type studentView struct {
	Student    *sdk.Student
	DeleteHref string
}

func (s *Server) studentDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		s.renderError(w, r, http.StatusNotFound, "Not found", "")
		return
	}
	st, err := s.api.GetStudent(r.Context(), id)
	if err != nil {
		s.apiError(w, r, "view this student", err)
		return
	}

	view := studentView{Student: st}
	if s.guard.CanPerformAction(sessionFrom(r.Context()), actionDeleteStudent) {
		view.DeleteHref = r.URL.Path + "/delete"
	}
	s.render(w, r, http.StatusOK, "student", pageView{Title: st.FullName, Data: view})
}

type userRow struct {
	User       sdk.User
	ToggleHref string
	DeleteHref string
}

type usersView struct {
	Keyword string
	Rows    []userRow
}

func (s *Server) users(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	keyword := strings.TrimSpace(r.URL.Query().Get("keyword"))

	var (
		list []sdk.User
		err  error
	)
	if keyword != "" {
		list, err = s.api.SearchUsers(r.Context(), keyword)
	} else {
		list, err = s.api.ListUsers(r.Context())
	}
	if err != nil {
		s.apiError(w, r, "list users", err)
		return
	}

	base, _ := s.routePath(routeUsers)
	view := usersView{Keyword: keyword, Rows: make([]userRow, 0, len(list))}
	for _, u := range list {
		row := userRow{User: u}
		prefix := base + "/" + strconv.FormatInt(u.ID, 10)
		if s.guard.CanActOnUser(session, actionToggleUser, u.ID) {
			row.ToggleHref = prefix + "/toggle-status"
		}
		if s.guard.CanActOnUser(session, actionDeleteUser, u.ID) {
			row.DeleteHref = prefix + "/delete"
		}
		view.Rows = append(view.Rows, row)
	}
	s.render(w, r, http.StatusOK, "users", pageView{Title: label(routeUsers), Data: view})
}

type roleRow struct {
	Role       sdk.CatalogRole
	DeleteHref string
}

func (s *Server) roles(w http.ResponseWriter, r *http.Request) {
	list, err := s.api.ListRoles(r.Context())
	if err != nil {
		s.apiError(w, r, "list roles", err)
		return
	}

	base, _ := s.routePath(routeRoles)
	canDelete := s.guard.CanPerformAction(sessionFrom(r.Context()), actionDeleteRole)
	rows := make([]roleRow, 0, len(list))
	for _, role := range list {
		row := roleRow{Role: role}
		if canDelete {
			row.DeleteHref = base + "/" + strconv.FormatInt(role.ID, 10) + "/delete"
		}
		rows = append(rows, row)
	}
	s.render(w, r, http.StatusOK, "roles", pageView{Title: label(routeRoles), Data: rows})
}

func (s *Server) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		s.renderError(w, r, http.StatusNotFound, "Not found", "")
		return
	}
	if !s.guard.CanPerformAction(sessionFrom(r.Context()), actionDeleteRole) {
		s.renderError(w, r, http.StatusForbidden, "Access denied", "You do not have permission to delete roles.")
		return
	}
	if err := s.api.DeleteRole(r.Context(), id); err != nil {
		s.apiError(w, r, "delete this role", err)
		return
	}
	redirectWithNotice(w, r, s.path(routeRoles), fmt.Sprintf("Role %d deleted.", id))
}

func (s *Server) deleteStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		s.renderError(w, r, http.StatusNotFound, "Not found", "")
		return
	}
	if !s.guard.CanPerformAction(sessionFrom(r.Context()), actionDeleteStudent) {
		s.renderError(w, r, http.StatusForbidden, "Access denied", "You do not have permission to delete students.")
		return
	}
	if err := s.api.DeleteStudent(r.Context(), id); err != nil {
		s.apiError(w, r, "delete this student", err)
		return
	}
	redirectWithNotice(w, r, s.path(routeStudents), fmt.Sprintf("Student %d deleted.", id))
}

// userAction parses the target id and checks actionID against it, rendering
// the refusal itself when the action is not allowed.
func (s *Server) userAction(w http.ResponseWriter, r *http.Request, actionID string) (int64, bool) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		s.renderError(w, r, http.StatusNotFound, "Not found", "")
		return 0, false
	}
	session := sessionFrom(r.Context())
	switch {
	case !s.guard.CanPerformAction(session, actionID):
		s.renderError(w, r, http.StatusForbidden, "Access denied", "You do not have permission to manage users.")
		return 0, false
	case !s.guard.CanActOnUser(session, actionID, id):
		s.renderError(w, r, http.StatusForbidden, "Access denied", "You cannot do this to your own account.")
		return 0, false
	}
	return id, true
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.userAction(w, r, actionDeleteUser)
	if !ok {
		return
	}
	if err := s.api.DeleteUser(r.Context(), id); err != nil {
		s.apiError(w, r, "delete this user", err)
		return
	}
	redirectWithNotice(w, r, s.path(routeUsers), fmt.Sprintf("User %d deleted.", id))
}

func (s *Server) toggleUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.userAction(w, r, actionToggleUser)
	if !ok {
		return
	}
	u, err := s.api.ToggleUserStatus(r.Context(), id)
	if err != nil {
		s.apiError(w, r, "change this user's status", err)
		return
	}
	status := "disabled"
	if u.IsActive {
		status = "active"
	}
	redirectWithNotice(w, r, s.path(routeUsers), fmt.Sprintf("User %s is now %s.", u.Username, status))
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil && id > 0
}
