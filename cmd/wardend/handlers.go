package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/inkhaven-social/warden/behavior"
	"github.com/inkhaven-social/warden/content"
	"github.com/inkhaven-social/warden/engine"
	"github.com/inkhaven-social/warden/flagstore"
	"github.com/inkhaven-social/warden/policy"
	"github.com/inkhaven-social/warden/roles"
	"github.com/inkhaven-social/warden/visibility"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
)

type GenericError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	var errorMessage string
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		errorMessage = fmt.Sprintf("%s", he.Message)
	}
	if code >= 500 {
		slog.Warn("wardend-http-internal-error", "err", err)
	}
	c.JSON(code, GenericStatus{Status: "error", Daemon: "wardend", Message: errorMessage})
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(200, GenericStatus{Status: "ok", Daemon: "wardend"})
}

// moderationError maps service errors onto API responses: a role check
// failure is the caller's fault (403), anything else is ours (500).
func moderationError(c echo.Context, err error) error {
	var authzErr *roles.AuthorizationError
	if errors.As(err, &authzErr) {
		return c.JSON(403, GenericError{
			Error:   "NotAuthorized",
			Message: fmt.Sprintf("%s", err),
		})
	}
	return c.JSON(500, GenericError{
		Error:   "InternalError",
		Message: fmt.Sprintf("%s", err),
	})
}

type imageRefBody struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type,omitempty"`
}

type evaluateRequest struct {
	Kind     string         `json:"kind"`
	ID       string         `json:"id"`
	AuthorID string         `json:"author_id"`
	Texts    []string       `json:"texts"`
	Images   []imageRefBody `json:"images,omitempty"`
}

// evaluateResponse is the decision plus, for blocked content, the structured
// rejection the platform relays to the submitting user. The verdict itself is
// data, not an HTTP error: blocked submissions still return 200.
type evaluateResponse struct {
	*engine.Decision
	Error *engine.BlockedError `json:"error,omitempty"`
}

func (srv *Server) HandleEvaluate(c echo.Context) error {
	ctx := c.Request().Context()

	var req evaluateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: fmt.Sprintf("%s", err),
		})
	}

	item := content.Item{
		Ref:      content.Ref{Kind: content.Kind(req.Kind), ID: req.ID},
		AuthorID: req.AuthorID,
		Texts:    req.Texts,
	}
	for _, img := range req.Images {
		item.Images = append(item.Images, content.ImageRef{ID: img.ID, URL: img.URL, MimeType: img.MimeType})
	}
	if err := item.Validate(); err != nil {
		return c.JSON(400, GenericError{
			Error:   "InvalidContent",
			Message: fmt.Sprintf("%s", err),
		})
	}

	ctx, span := tracer.Start(ctx, "HandleEvaluate")
	defer span.End()
	span.SetAttributes(attribute.String("subject", item.Ref.String()))

	d, err := srv.engine.Evaluate(ctx, item)
	if err != nil {
		return c.JSON(500, GenericError{
			Error:   "InternalError",
			Message: fmt.Sprintf("%s", err),
		})
	}

	if d.Allowed {
		// published content feeds the scan-side activity mirror; blocked
		// attempts are already audited by the engine
		srv.activity.AddContent(item.AuthorID, behavior.ContentActivity{
			Ref:       item.Ref,
			Text:      item.AllText(),
			CreatedAt: time.Now().UTC(),
		})
	}
	return c.JSON(200, evaluateResponse{Decision: d, Error: d.Err()})
}

type filterItemBody struct {
	Kind     string `json:"kind"`
	ID       string `json:"id"`
	AuthorID string `json:"author_id"`
}

type filterRequest struct {
	ViewerID string           `json:"viewer_id,omitempty"`
	Items    []filterItemBody `json:"items"`
}

type filteredItemBody struct {
	Kind     string `json:"kind"`
	ID       string `json:"id"`
	AuthorID string `json:"author_id"`
	IsNSFW   bool   `json:"is_nsfw"`
	Blurred  bool   `json:"is_blurred"`
}

type filterResponse struct {
	Items []filteredItemBody `json:"items"`
}

func (srv *Server) HandleFilter(c echo.Context) error {
	ctx := c.Request().Context()

	var req filterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: fmt.Sprintf("%s", err),
		})
	}

	items := make([]visibility.Item, 0, len(req.Items))
	for _, it := range req.Items {
		k := content.Kind(it.Kind)
		if !k.Valid() {
			return c.JSON(400, GenericError{
				Error:   "InvalidContent",
				Message: fmt.Sprintf("invalid content kind: %q", it.Kind),
			})
		}
		items = append(items, visibility.Item{
			Ref:      content.Ref{Kind: k, ID: it.ID},
			AuthorID: it.AuthorID,
		})
	}

	// moderator status comes from the roles directory, never from the caller
	viewer := visibility.Viewer{
		AccountID: req.ViewerID,
		Moderator: srv.roles.IsModerator(req.ViewerID),
	}

	annotated, err := srv.filter.ForViewer(ctx, items, viewer)
	if err != nil {
		return c.JSON(500, GenericError{
			Error:   "InternalError",
			Message: fmt.Sprintf("%s", err),
		})
	}

	resp := filterResponse{Items: make([]filteredItemBody, 0, len(annotated))}
	for _, a := range annotated {
		resp.Items = append(resp.Items, filteredItemBody{
			Kind:     string(a.Ref.Kind),
			ID:       a.Ref.ID,
			AuthorID: a.AuthorID,
			IsNSFW:   a.IsNSFW,
			Blurred:  a.Blurred,
		})
	}
	return c.JSON(200, resp)
}

type preferenceRequest struct {
	Pref string `json:"pref"`
}

func (srv *Server) HandleSetPreference(c echo.Context) error {
	ctx := c.Request().Context()
	accountID := c.Param("account")

	var req preferenceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: fmt.Sprintf("%s", err),
		})
	}
	pref := visibility.NSFWPref(req.Pref)
	if !pref.Valid() {
		return c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: fmt.Sprintf("unknown NSFW preference: %q", req.Pref),
		})
	}

	if err := srv.prefs.Set(ctx, accountID, pref); err != nil {
		return c.JSON(500, GenericError{
			Error:   "InternalError",
			Message: fmt.Sprintf("%s", err),
		})
	}
	return c.JSON(200, GenericStatus{Status: "ok", Daemon: "wardend"})
}

func (srv *Server) HandleCheckEnforcement(c echo.Context) error {
	ctx := c.Request().Context()

	status, err := srv.enforcement.Check(ctx, c.Param("account"))
	if err != nil {
		return c.JSON(500, GenericError{
			Error:   "InternalError",
			Message: fmt.Sprintf("%s", err),
		})
	}
	return c.JSON(200, status)
}

type sanctionRequest struct {
	ModeratorID string     `json:"moderator_id"`
	Reason      string     `json:"reason,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func (req *sanctionRequest) validate(needsReason bool) error {
	if req.ModeratorID == "" {
		return fmt.Errorf("moderator_id is required")
	}
	if needsReason && req.Reason == "" {
		return fmt.Errorf("reason is required")
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now().UTC()) {
		return fmt.Errorf("expires_at must be in the future")
	}
	return nil
}

func (srv *Server) HandleSuspend(c echo.Context) error {
	ctx := c.Request().Context()

	var req sanctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: fmt.Sprintf("%s", err),
		})
	}
	if err := req.validate(true); err != nil {
		return c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: fmt.Sprintf("%s", err),
		})
	}

	if err := srv.enforcement.Suspend(ctx, req.ModeratorID, c.Param("account"), req.Reason, req.ExpiresAt); err != nil {
		return moderationError(c, err)
	}
	return c.JSON(200, GenericStatus{Status: "ok", Daemon: "wardend"})
}

func (srv *Server) HandleLiftSuspension(c echo.Context) error {
	ctx := c.Request().Context()

	var req sanctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: fmt.Sprintf("%s", err),
		})
	}
	if err := req.validate(false); err != nil {
		return c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: fmt.Sprintf("%s", err),
		})
	}

	if err := srv.enforcement.LiftSuspension(ctx, req.ModeratorID, c.Param("account")); err != nil {
		return moderationError(c, err)
	}
	return c.JSON(200, GenericStatus{Status: "ok", Daemon: "wardend"})
}

func (srv *Server) HandleShadowban(c echo.Context) error {
	ctx := c.Request().Context()

	var req sanctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: fmt.Sprintf("%s", err),
		})
	}
	if err := req.validate(true); err != nil {
		return c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: fmt.Sprintf("%s", err),
		})
	}

	if err := srv.enforcement.Shadowban(ctx, req.ModeratorID, c.Param("account"), req.Reason); err != nil {
		return moderationError(c, err)
	}
	return c.JSON(200, GenericStatus{Status: "ok", Daemon: "wardend"})
}

func (srv *Server) HandleRemoveShadowban(c echo.Context) error {
	ctx := c.Request().Context()

	var req sanctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: fmt.Sprintf("%s", err),
		})
	}
	if err := req.validate(false); err != nil {
		return c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: fmt.Sprintf("%s", err),
		})
	}

	if err := srv.enforcement.RemoveShadowban(ctx, req.ModeratorID, c.Param("account")); err != nil {
		return moderationError(c, err)
	}
	return c.JSON(200, GenericStatus{Status: "ok", Daemon: "wardend"})
}

type policiesResponse struct {
	Version int64           `json:"version"`
	Filters []policy.Filter `json:"filters"`
}

func (srv *Server) HandleGetPolicies(c echo.Context) error {
	snap := srv.policies.Current()
	resp := policiesResponse{
		Version: snap.Version,
		Filters: make([]policy.Filter, 0, len(policy.FilterTypes)),
	}
	for _, t := range policy.FilterTypes {
		resp.Filters = append(resp.Filters, snap.For(t))
	}
	return c.JSON(200, resp)
}

type policyUpdateRequest struct {
	UpdatedBy   string   `json:"updated_by"`
	Sensitivity string   `json:"sensitivity,omitempty"`
	Enabled     *bool    `json:"enabled,omitempty"`
	Whitelist   []string `json:"whitelist,omitempty"`
	Blacklist   []string `json:"blacklist,omitempty"`
}

type policyUpdateResponse struct {
	Version int64         `json:"version"`
	Filter  policy.Filter `json:"filter"`
}

func (srv *Server) HandleUpdatePolicy(c echo.Context) error {
	t := flagstore.FlagType(c.Param("type"))
	known := false
	for _, ft := range policy.FilterTypes {
		if ft == t {
			known = true
			break
		}
	}
	if !known {
		return c.JSON(400, GenericError{
			Error:   "UnknownFilter",
			Message: fmt.Sprintf("no filter for type: %q", t),
		})
	}

	var req policyUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: fmt.Sprintf("%s", err),
		})
	}
	if req.UpdatedBy == "" {
		return c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: "updated_by is required",
		})
	}
	if err := roles.RequireAdmin(srv.roles, req.UpdatedBy, "update content policies"); err != nil {
		return moderationError(c, err)
	}

	u := policy.Update{
		Enabled:   req.Enabled,
		Whitelist: req.Whitelist,
		Blacklist: req.Blacklist,
	}
	if req.Sensitivity != "" {
		s := policy.Sensitivity(req.Sensitivity)
		u.Sensitivity = &s
	}

	snap, err := srv.policies.Update(t, u, req.UpdatedBy)
	if err != nil {
		return c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: fmt.Sprintf("%s", err),
		})
	}
	return c.JSON(200, policyUpdateResponse{Version: snap.Version, Filter: snap.For(t)})
}

func subjectFromParams(c echo.Context) (content.Ref, error) {
	k := content.Kind(c.Param("kind"))
	if !k.Valid() {
		return content.Ref{}, fmt.Errorf("invalid content kind: %q", c.Param("kind"))
	}
	return content.Ref{Kind: k, ID: c.Param("id")}, nil
}

type nsfwOverrideRequest struct {
	ModeratorID string `json:"moderator_id"`
	NSFW        bool   `json:"nsfw"`
}

func (srv *Server) HandleOverrideNSFW(c echo.Context) error {
	ctx := c.Request().Context()

	subject, err := subjectFromParams(c)
	if err != nil {
		return c.JSON(400, GenericError{
			Error:   "InvalidContent",
			Message: fmt.Sprintf("%s", err),
		})
	}

	var req nsfwOverrideRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: fmt.Sprintf("%s", err),
		})
	}
	if req.ModeratorID == "" {
		return c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: "moderator_id is required",
		})
	}

	if err := srv.visual.Override(ctx, subject, req.ModeratorID, req.NSFW); err != nil {
		return moderationError(c, err)
	}
	return c.JSON(200, GenericStatus{Status: "ok", Daemon: "wardend"})
}

type nsfwMarkRequest struct {
	AccountID string `json:"account_id"`
	NSFW      bool   `json:"nsfw"`
}

func (srv *Server) HandleSelfMarkNSFW(c echo.Context) error {
	ctx := c.Request().Context()

	subject, err := subjectFromParams(c)
	if err != nil {
		return c.JSON(400, GenericError{
			Error:   "InvalidContent",
			Message: fmt.Sprintf("%s", err),
		})
	}

	var req nsfwMarkRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: fmt.Sprintf("%s", err),
		})
	}
	if req.AccountID == "" {
		return c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: "account_id is required",
		})
	}

	// the platform verifies the account owns the content before calling
	if err := srv.visual.SelfMark(ctx, subject, req.AccountID, req.NSFW); err != nil {
		return c.JSON(500, GenericError{
			Error:   "InternalError",
			Message: fmt.Sprintf("%s", err),
		})
	}
	return c.JSON(200, GenericStatus{Status: "ok", Daemon: "wardend"})
}

type scanResponse struct {
	AccountID string                   `json:"account_id"`
	Flags     []behavior.SuspicionFlag `json:"flags"`
}

func (srv *Server) HandleScanAccount(c echo.Context) error {
	ctx := c.Request().Context()
	accountID := c.Param("account")

	flags, err := srv.behavior.ScanAndRecord(ctx, accountID)
	if err != nil {
		return c.JSON(500, GenericError{
			Error:   "InternalError",
			Message: fmt.Sprintf("%s", err),
		})
	}
	if flags == nil {
		flags = []behavior.SuspicionFlag{}
	}
	return c.JSON(200, scanResponse{AccountID: accountID, Flags: flags})
}

type accountActivityRequest struct {
	AccountID string     `json:"account_id"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

func (srv *Server) HandleRecordAccount(c echo.Context) error {
	var req accountActivityRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: fmt.Sprintf("%s", err),
		})
	}
	if req.AccountID == "" {
		return c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: "account_id is required",
		})
	}

	createdAt := time.Now().UTC()
	if req.CreatedAt != nil {
		createdAt = *req.CreatedAt
	}
	srv.activity.AddAccount(req.AccountID, createdAt)
	return c.JSON(200, GenericStatus{Status: "ok", Daemon: "wardend"})
}

type sessionActivityRequest struct {
	AccountID string `json:"account_id"`
	IP        string `json:"ip"`
}

func (srv *Server) HandleRecordSession(c echo.Context) error {
	var req sessionActivityRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: fmt.Sprintf("%s", err),
		})
	}
	if req.AccountID == "" || req.IP == "" {
		return c.JSON(400, GenericError{
			Error:   "InvalidRequest",
			Message: "account_id and ip are required",
		})
	}

	srv.activity.AddSession(req.AccountID, req.IP)
	return c.JSON(200, GenericStatus{Status: "ok", Daemon: "wardend"})
}
