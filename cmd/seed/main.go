package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/awnhealth/scheduling-engine/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	therapistIDs, err := seedTherapists(context.Background(), pool, 30)
	if err != nil {
		log.Fatalf("seed therapists: %v", err)
	}
	if err := seedBookings(context.Background(), pool, therapistIDs, 200); err != nil {
		log.Fatalf("seed bookings: %v", err)
	}
	if err := seedAppointments(context.Background(), pool, therapistIDs, 100); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

func seedTherapists(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d therapists", count)

	roles := []string{
		"Physiotherapist",
		"Sports Rehabilitation Specialist",
		"Pediatric Physiotherapist",
		"Geriatric Physiotherapist",
		"Orthopedic Physiotherapist",
		"Neurological Physiotherapist",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		slug := fmt.Sprintf("%s-%d", strings.ToLower(strings.ReplaceAll(name, " ", "-")), i)
		role := roles[gofakeit.Number(0, len(roles)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO therapists (id, slug, name_ar, name_en, role_ar, role_en, avatar_url, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, true, now(), now())
		`, id, slug, name, name, role, role, gofakeit.ImageURL(256, 256))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

func seedBookings(ctx context.Context, pool *pgxpool.Pool, therapists []uuid.UUID, count int) error {
	log.Printf("seeding %d bookings", count)

	sessionTypes := []string{"online", "home"}
	statuses := []string{"pending", "confirmed", "cancelled", "completed"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Walk distinct slots so seeding never trips the active-slot unique index.
	slot := 0
	for i := 0; i < count; i++ {
		therapist := therapists[slot%len(therapists)]
		day := time.Now().AddDate(0, 0, 1+slot/len(therapists)%30)
		hour := 8 + (slot/len(therapists))%11
		slot++

		email := strings.ToLower(gofakeit.Email())
		phone := gofakeit.Phone()
		status := statuses[gofakeit.Number(0, len(statuses)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO bookings (id, therapist_id, user_name, user_email, user_phone,
				booking_date, booking_time, session_type, session_duration, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 60, $9, now(), now())
		`, uuid.New(), therapist, gofakeit.Name(), email, phone,
			day.Format("2006-01-02"), fmt.Sprintf("%02d:00", hour),
			sessionTypes[gofakeit.Number(0, 1)], status)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func seedAppointments(ctx context.Context, pool *pgxpool.Pool, therapists []uuid.UUID, count int) error {
	log.Printf("seeding %d appointments", count)

	kinds := []string{"online", "home"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		patientID := fmt.Sprintf("PAT_%d", gofakeit.Number(1_000_000_000, 9_999_999_999))
		therapist := therapists[gofakeit.Number(0, len(therapists)-1)]
		day := time.Now().AddDate(0, 0, gofakeit.Number(1, 45))
		note := gofakeit.Sentence(8)

		_, err := tx.Exec(ctx, `
			INSERT INTO appointments (id, patient_id, therapist_id, date, time, kind, status, patient_notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 'upcoming', $7, now(), now())
		`, uuid.New(), patientID, therapist,
			day.Format("2006-01-02"), fmt.Sprintf("%02d:00", gofakeit.Number(8, 18)),
			kinds[gofakeit.Number(0, 1)], note)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
