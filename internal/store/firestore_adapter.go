package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/krultra/smtp-agent/pkg/logger"
)

// FirestoreAdapter is the production Adapter implementation.
type FirestoreAdapter struct {
	client *firestore.Client
}

// NewFirestoreAdapter constructs a client against projectID, using a
// service-account credentials file when credentialsPath is non-empty.
func NewFirestoreAdapter(ctx context.Context, projectID, credentialsPath string) (*FirestoreAdapter, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: new client: %w", err)
	}
	return &FirestoreAdapter{client: client}, nil
}

func (a *FirestoreAdapter) Close() error { return a.client.Close() }

func (a *FirestoreAdapter) mailCol() *firestore.CollectionRef {
	return a.client.Collection(MailCollection)
}

// ListCandidates builds createdAt >= cutoff plus, when the store
// accepts it, smtpAgent.state NOT IN (SENT, SKIPPED). On failure of the
// NOT IN predicate it retries with the cutoff-only query and reports
// degraded=true so the engine filters terminal states in code.
func (a *FirestoreAdapter) ListCandidates(ctx context.Context, cutoff *time.Time) ([]Candidate, bool, error) {
	primary := a.mailCol().Query
	if cutoff != nil {
		primary = primary.Where("createdAt", ">=", *cutoff)
	}
	withNotIn := primary.Where("smtpAgent.state", "not-in", []string{string(StateSent), string(StateSkipped)})

	docs, err := a.runQuery(ctx, withNotIn)
	if err == nil {
		return docs, false, nil
	}
	logger.Current().Warn("primary ListCandidates query failed, falling back without NOT IN predicate", "error", err.Error())

	docs, err = a.runQuery(ctx, primary)
	if err != nil {
		return nil, true, fmt.Errorf("firestore: fallback query also failed: %w", err)
	}
	return docs, true, nil
}

func (a *FirestoreAdapter) ListByStateDescUpdated(ctx context.Context, state AgentState, limit int) ([]Candidate, error) {
	q := a.mailCol().Query
	if state != "" {
		q = q.Where("smtpAgent.state", "==", string(state))
	}
	q = q.OrderBy("smtpAgent.lastUpdatedAt", firestore.Desc).Limit(limit)
	return a.runQuery(ctx, q)
}

func (a *FirestoreAdapter) ScanUpdatedSince(ctx context.Context, since time.Time) ([]Candidate, error) {
	q := a.mailCol().Query.Where("smtpAgent.lastUpdatedAt", ">=", since)
	return a.runQuery(ctx, q)
}

func (a *FirestoreAdapter) runQuery(ctx context.Context, q firestore.Query) ([]Candidate, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []Candidate
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Candidate{
			Ref: DocRef{ID: snap.Ref.ID},
			Doc: decodeMailDocument(snap.Ref.ID, snap.Data()),
		})
	}
	return out, nil
}

func (a *FirestoreAdapter) Get(ctx context.Context, ref DocRef) (*MailDocument, error) {
	snap, err := a.mailCol().Doc(ref.ID).Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	doc := decodeMailDocument(ref.ID, snap.Data())
	return &doc, nil
}

func (a *FirestoreAdapter) SetMerge(ctx context.Context, ref DocRef, fields map[string]FieldWrite) error {
	data := encodeFieldWrites(fields)
	_, err := a.mailCol().Doc(ref.ID).Set(ctx, data, firestore.MergeAll)
	return err
}

func (a *FirestoreAdapter) Update(ctx context.Context, ref DocRef, fields map[string]FieldWrite) error {
	updates := make([]firestore.Update, 0, len(fields))
	for path, fw := range fields {
		updates = append(updates, firestore.Update{Path: path, Value: encodeOne(fw)})
	}
	_, err := a.mailCol().Doc(ref.ID).Update(ctx, updates)
	return err
}

func (a *FirestoreAdapter) GetAdminConfig(ctx context.Context) (AdminConfig, error) {
	snap, err := a.client.Doc(AdminConfigPath).Get(ctx)
	if isNotFound(err) {
		return AdminConfig{}, nil
	}
	if err != nil {
		return AdminConfig{}, err
	}
	return decodeAdminConfig(snap.Data()), nil
}

func (a *FirestoreAdapter) SetAdminConfig(ctx context.Context, cfg AdminConfig) error {
	data := map[string]any{
		"pollInterval":        cfg.PollIntervalSeconds,
		"processFromAfter":    cfg.ProcessFromAfter,
		"maxRetryCount":       cfg.MaxRetryCount,
		"logLevel":            cfg.LogLevel,
		"dashboardRefreshSec": cfg.DashboardRefreshSec,
		"updatedAt":           firestore.ServerTimestamp,
	}
	_, err := a.client.Doc(AdminConfigPath).Set(ctx, data, firestore.MergeAll)
	return err
}

func (a *FirestoreAdapter) GetAdminStatus(ctx context.Context) (AdminStatus, error) {
	snap, err := a.client.Doc(AdminStatusPath).Get(ctx)
	if isNotFound(err) {
		return AdminStatus{}, nil
	}
	if err != nil {
		return AdminStatus{}, err
	}
	var st AdminStatus
	if t, ok := snap.Data()["statusResetAt"].(time.Time); ok {
		st.StatusResetAt = &t
	}
	return st, nil
}

func (a *FirestoreAdapter) ResetAdminStatus(ctx context.Context) error {
	_, err := a.client.Doc(AdminStatusPath).Set(ctx, map[string]any{
		"statusResetAt": firestore.ServerTimestamp,
	}, firestore.MergeAll)
	return err
}

// Ping performs a minimal reachability probe by reading a throwaway
// document; a NotFound response still counts as reachable.
func (a *FirestoreAdapter) Ping(ctx context.Context) error {
	_, err := a.client.Collection("_smtpAgentTests").Doc("_health").Get(ctx)
	if isNotFound(err) {
		return nil
	}
	return err
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	// The Firestore client returns a grpc status with codes.NotFound for
	// Get() on a missing document.
	return grpcstatus.Code(err) == codes.NotFound
}

func encodeFieldWrites(fields map[string]FieldWrite) map[string]any {
	out := map[string]any{}
	for path, fw := range fields {
		assignNested(out, splitPath(path), encodeOne(fw))
	}
	return out
}

func encodeOne(fw FieldWrite) any {
	switch {
	case fw.IsServerNow():
		return firestore.ServerTimestamp
	case fw.IsIncrement():
		return firestore.Increment(fw.Delta())
	case fw.IsNull():
		return nil
	default:
		return fw.Value()
	}
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	parts = append(parts, path[start:])
	return parts
}

func assignNested(root map[string]any, parts []string, value any) {
	cur := root
	for i, p := range parts {
		if i == len(parts)-1 {
			cur[p] = value
			return
		}
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
}

func decodeMailDocument(id string, data map[string]any) MailDocument {
	doc := MailDocument{ID: id}
	doc.To = normalizeTo(data["to"])

	if msg, ok := data["message"].(map[string]any); ok {
		doc.Subject, _ = msg["subject"].(string)
		doc.HTML, _ = msg["html"].(string)
	}
	if doc.Subject == "" {
		doc.Subject, _ = data["subject"].(string)
	}
	if doc.HTML == "" {
		doc.HTML, _ = data["html"].(string)
	}

	if t, ok := data["createdAt"].(time.Time); ok {
		doc.CreatedAt = &t
	}

	if sa, ok := data["smtpAgent"].(map[string]any); ok {
		doc.SmtpAgent = decodeSmtpAgent(sa)
	}
	return doc
}

func decodeSmtpAgent(sa map[string]any) SmtpAgent {
	var out SmtpAgent
	out.Version, _ = sa["version"].(string)
	out.Host, _ = sa["host"].(string)
	if pid, ok := sa["pid"].(int64); ok {
		out.PID = int(pid)
	}
	if st, ok := sa["state"].(string); ok {
		out.State = AgentState(st)
	}
	out.Attempts = asInt64(sa["attempts"])
	out.LastUpdatedAt = asTimePtr(sa["lastUpdatedAt"])
	out.LastSuccessAt = asTimePtr(sa["lastSuccessAt"])
	out.NextRetryAt = asTimePtr(sa["nextRetryAt"])

	if la, ok := sa["lastAttempt"].(map[string]any); ok {
		out.LastAttempt = LastAttempt{
			StartTime:    asTimePtr(la["startTime"]),
			EndTime:      asTimePtr(la["endTime"]),
			Success:      asBool(la["success"]),
			ErrorCode:    asString(la["errorCode"]),
			ErrorMessage: asString(la["errorMessage"]),
			SMTPResponse: asString(la["smtpResponse"]),
			ToResolved:   normalizeTo(la["toResolved"]),
		}
	}
	if p, ok := sa["processing"].(map[string]any); ok {
		out.Processing = Processing{
			By:              asString(p["by"]),
			LeaseExpireTime: asTimePtr(p["leaseExpireTime"]),
		}
	}
	if idem, ok := sa["idempotency"].(map[string]any); ok {
		out.Idempotency = Idempotency{
			MessageHash:        asString(idem["messageHash"]),
			LastSeenSameHashAt: asTimePtr(idem["lastSeenSameHashAt"]),
		}
	}
	return out
}

func decodeAdminConfig(data map[string]any) AdminConfig {
	return AdminConfig{
		PollIntervalSeconds: int(asInt64(data["pollInterval"])),
		ProcessFromAfter:    asString(data["processFromAfter"]),
		MaxRetryCount:       int(asInt64(data["maxRetryCount"])),
		LogLevel:            asString(data["logLevel"]),
		DashboardRefreshSec: int(asInt64(data["dashboardRefreshSec"])),
		UpdatedAt:           asTimePtr(data["updatedAt"]),
	}
}

// normalizeTo accepts either a single address string or a list and
// returns an ordered []string, preserving input order.
func normalizeTo(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return t
	default:
		return nil
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func asTimePtr(v any) *time.Time {
	if t, ok := v.(time.Time); ok {
		return &t
	}
	return nil
}
