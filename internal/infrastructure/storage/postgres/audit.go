package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	"vinoteka/internal/core/id"
	"vinoteka/internal/domain/audit"
)

const auditTable = "admin_audit"

// CompressionAlgo names how a payload is stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the payload size above which payloads are
// stored zstd-compressed.
const DefaultCompressThreshold = 4 << 10

type auditRow struct {
	Entity            string          `db:"entity"`
	Action            string          `db:"action"`
	ItemID            int64           `db:"item_id"`
	SessionID         string          `db:"session_id"`
	RequestID         string          `db:"request_id"`
	Payload           *string         `db:"payload"`
	PayloadCompressed []byte          `db:"payload_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditRepo implements audit.Journal.
type AuditRepo struct {
	txm       *TxManager
	builder   squirrel.StatementBuilderType
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

var _ audit.Journal = (*AuditRepo)(nil)

// NewAuditRepo creates an audit journal. threshold <= 0 uses
// DefaultCompressThreshold.
func NewAuditRepo(txm *TxManager, threshold int) (*AuditRepo, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}
	return &AuditRepo{
		txm:       txm,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		encoder:   encoder,
		decoder:   decoder,
		threshold: threshold,
	}, nil
}

// Close releases the decoder.
func (r *AuditRepo) Close() {
	r.decoder.Close()
}

// compress returns the stored form of payload.
func (r *AuditRepo) compress(payload []byte) (plain, packed []byte, algo CompressionAlgo) {
	if len(payload) <= r.threshold {
		return payload, nil, CompressionNone
	}
	return nil, r.encoder.EncodeAll(payload, nil), CompressionZstd
}

func (r *AuditRepo) Record(ctx context.Context, e audit.Entry) error {
	e = audit.Enrich(ctx, e)
	plain, packed, algo := r.compress(e.Payload)

	var payload any
	if plain != nil {
		payload = string(plain)
	}
	sql, args, err := r.builder.
		Insert(auditTable).
		Columns("entity", "action", "item_id", "session_id", "request_id",
			"payload", "payload_compressed", "compression_algo", "created_at").
		Values(e.Entity, e.Action, int64(e.ItemID), e.SessionID, e.RequestID,
			payload, packed, string(algo), e.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History returns the newest entries of one record first.
func (r *AuditRepo) History(ctx context.Context, entity string, itemID id.ID, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	sql, args, err := r.builder.
		Select("entity", "action", "item_id", "session_id", "request_id",
			"payload::text AS payload", "payload_compressed", "compression_algo", "created_at").
		From(auditTable).
		Where(squirrel.Eq{"entity": entity, "item_id": int64(itemID)}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var rows []auditRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	out := make([]audit.Entry, 0, len(rows))
	for _, row := range rows {
		var payload []byte
		if row.Payload != nil {
			payload = []byte(*row.Payload)
		}
		if row.CompressionAlgo == CompressionZstd && len(row.PayloadCompressed) > 0 {
			payload, err = r.decoder.DecodeAll(row.PayloadCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress payload: %w", err)
			}
		}
		out = append(out, audit.Entry{
			Entity:    row.Entity,
			Action:    row.Action,
			ItemID:    id.ID(row.ItemID),
			SessionID: row.SessionID,
			RequestID: row.RequestID,
			Payload:   payload,
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}
