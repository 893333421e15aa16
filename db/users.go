package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/padraicbc/usertokenapi/models"
)

// DefaultBatchSize is used when SeedUsers is given a non-positive batch size.
const DefaultBatchSize = 1000

// ErrNegativeCount is returned by SeedUsers before any mutation.
var ErrNegativeCount = errors.New("count must be non-negative")

// HashPassword returns the lowercase hex SHA-256 digest of password.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// SeedMail returns the mail address of the i-th seeded user (1-based).
func SeedMail(i int) string {
	return fmt.Sprintf("user%d@example.com", i)
}

// SeedPassword returns the plain password of the i-th seeded user.
func SeedPassword(i int) string {
	return fmt.Sprintf("password%d", i)
}

// SeedPasswordHash returns the stored hash of the i-th seeded user.
func SeedPasswordHash(i int) string {
	return HashPassword(SeedPassword(i))
}

// VerifyUser looks up a user by exact mail and hash. A missing match is
// reported as found == false with a nil error; err is only set when the
// store itself failed.
func VerifyUser(ctx context.Context, db bun.IDB, mail, hashedPassword string) (id int64, found bool, err error) {
	err = db.NewSelect().
		Model((*models.User)(nil)).
		Column("id").
		Where("mail = ?", mail).
		Where("hashed_password = ?", hashedPassword).
		Limit(1).
		Scan(ctx, &id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("verify user: %w", err)
	}
	return id, true, nil
}

// SeedUsers deletes every user and inserts count synthetic ones in
// transactions of batchSize rows. The delete and each batch are atomic on
// their own; a failure part way leaves the earlier batches in place.
// It returns the number of rows inserted so far.
func SeedUsers(ctx context.Context, db *bun.DB, count, batchSize int) (int, error) {
	if count < 0 {
		return 0, ErrNegativeCount
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().Model((*models.User)(nil)).Where("1 = 1").Exec(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("clear users: %w", err)
	}

	inserted := 0
	batch := make([]models.User, 0, min(batchSize, count))
	for i := 1; i <= count; i++ {
		batch = append(batch, models.User{
			Mail:           SeedMail(i),
			HashedPassword: SeedPasswordHash(i),
		})
		if len(batch) < batchSize && i < count {
			continue
		}
		if err := insertBatch(ctx, db, batch); err != nil {
			return inserted, fmt.Errorf("insert users %d-%d: %w", i-len(batch)+1, i, err)
		}
		inserted += len(batch)
		batch = batch[:0]
	}
	return inserted, nil
}

func insertBatch(ctx context.Context, db *bun.DB, rows []models.User) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
}

// CountUsers returns the number of stored users.
func CountUsers(ctx context.Context, db bun.IDB) (int, error) {
	return db.NewSelect().Model((*models.User)(nil)).Count(ctx)
}

// CopyUsers copies every user from src into dst in id order, batchSize rows
// at a time. Mails already present in dst are skipped; dst assigns new ids.
// It returns the number of rows read from src.
func CopyUsers(ctx context.Context, src bun.IDB, dst *bun.DB, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var lastID int64
	total := 0
	for {
		var page []models.User
		err := src.NewSelect().
			Model(&page).
			Where("id > ?", lastID).
			Order("id ASC").
			Limit(batchSize).
			Scan(ctx)
		if err != nil {
			return total, fmt.Errorf("read users after id %d: %w", lastID, err)
		}
		if len(page) == 0 {
			return total, nil
		}
		lastID = page[len(page)-1].ID

		rows := make([]models.User, len(page))
		for i, u := range page {
			rows[i] = models.User{Mail: u.Mail, HashedPassword: u.HashedPassword}
		}
		err = dst.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			_, err := tx.NewInsert().Model(&rows).Ignore().Exec(ctx)
			return err
		})
		if err != nil {
			return total, fmt.Errorf("write users up to id %d: %w", lastID, err)
		}
		total += len(page)
	}
}
