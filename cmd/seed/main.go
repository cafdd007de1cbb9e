package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-booking/internal/auth"
	"github.com/hackgods/doctor-appointment-booking/internal/availability"
	"github.com/hackgods/doctor-appointment-booking/internal/config"
	"github.com/hackgods/doctor-appointment-booking/internal/db"
	"github.com/hackgods/doctor-appointment-booking/internal/logger"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

var slotDurations = []int{15, 20, 30, 45, 60}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(zerolog.NewConsoleWriter())
		boot.Fatal().Err(err).Msg("config load error")
	}
	log := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel).With().Str("cmd", "seed").Logger()
	log.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, db.PoolOptions{DSN: cfg.PostgresDSN, MaxConns: cfg.DBMaxConns})
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, log); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	doctorUsers, err := seedDoctors(ctx, pool, faker, getInt("SEED_DOCTORS", 100), log)
	if err != nil {
		log.Fatal().Err(err).Msg("seed doctors")
	}

	// Dev tokens, so the API can be exercised straight away.
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	patientToken, err := issuer.Issue(auth.Principal{UserID: uuid.New(), Role: auth.RolePatient})
	if err != nil {
		log.Fatal().Err(err).Msg("issue patient token")
	}
	doctorToken, err := issuer.Issue(auth.Principal{UserID: doctorUsers[0], Role: auth.RoleDoctor})
	if err != nil {
		log.Fatal().Err(err).Msg("issue doctor token")
	}
	fmt.Printf("PATIENT_TOKEN=%s\nDOCTOR_TOKEN=%s\n", patientToken, doctorToken)

	log.Info().Msg("seed complete")
}

// seedDoctors inserts count active doctors and returns their user IDs.
func seedDoctors(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int, log zerolog.Logger) ([]uuid.UUID, error) {
	log.Info().Int("count", count).Msg("seeding doctors")

	const batchSize = 50
	users := make([]uuid.UUID, 0, count)

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		insert := psql.Insert("doctors").
			Columns("id", "user_id", "name", "specialty", "active", "availability")

		for i := offset; i < end; i++ {
			userID := uuid.New()
			schedule, err := json.Marshal(randomWeek(faker))
			if err != nil {
				return nil, err
			}
			insert = insert.Values(
				uuid.New(),
				userID,
				"Dr. "+faker.Name(),
				specialties[faker.Number(0, len(specialties)-1)],
				true,
				schedule,
			)
			users = append(users, userID)
		}

		query, args, err := insert.ToSql()
		if err != nil {
			return nil, err
		}
		if _, err := pool.Exec(ctx, query, args...); err != nil {
			return nil, err
		}

		log.Info().Int("seeded", end).Int("total", count).Msg("doctors seeded")
	}

	return users, nil
}

// randomWeek gives a weekday schedule with a morning window and, sometimes,
// a Saturday clinic.
func randomWeek(faker *gofakeit.Faker) availability.WeeklyAvailability {
	duration := slotDurations[faker.Number(0, len(slotDurations)-1)]
	startHour := faker.Number(7, 10)
	endHour := startHour + faker.Number(3, 8)

	week := make(availability.WeeklyAvailability, 0, 6)
	for d := time.Monday; d <= time.Friday; d++ {
		week = append(week, availability.Entry{
			Day:                 availability.Weekday(d),
			Start:               availability.Clock(startHour * 60),
			End:                 availability.Clock(endHour * 60),
			SlotDurationMinutes: duration,
			Available:           faker.Number(0, 9) > 0,
		})
	}
	if faker.Bool() {
		week = append(week, availability.Entry{
			Day:                 availability.Weekday(time.Saturday),
			Start:               availability.MustClock("09:00"),
			End:                 availability.MustClock("12:00"),
			SlotDurationMinutes: duration,
			Available:           true,
		})
	}
	return week
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
