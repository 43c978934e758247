// Command finboard-seed fills the configured store with a demo account and
// several months of generated transactions.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"finboard/internal/auth"
	"finboard/internal/backend"
	"finboard/internal/cli"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/services"
)

var expenseTitles = map[string][]string{
	"Food":      {"Groceries", "Supermarket", "Bakery", "Lunch out", "Pizza night"},
	"Transport": {"Fuel", "Train ticket", "Bus pass", "Parking", "Taxi"},
	"Housing":   {"Rent", "Electricity bill", "Gas bill", "Internet", "Water bill"},
	"Leisure":   {"Cinema", "Concert", "Books", "Streaming subscription", "Gym"},
	"Health":    {"Pharmacy", "Dentist", "Checkup"},
	"Other":     {"Gift", "Haircut", "Laundry"},
}

type options struct {
	email    string
	password string
	name     string
	months   int
	seed     int64
}

func main() {
	var opts options
	flag.StringVar(&opts.email, "email", "demo@finboard.local", "demo account email")
	flag.StringVar(&opts.password, "password", "demo1234", "demo account password")
	flag.StringVar(&opts.name, "name", "", "demo account display name (random when empty)")
	flag.IntVar(&opts.months, "months", 6, "number of months to generate, ending with the current one")
	flag.Int64Var(&opts.seed, "seed", 0, "random seed (0 picks one)")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentSeed)

	if opts.months < 1 || opts.months > services.MaxHistoryMonths {
		logger.Error("Invalid -months", "months", opts.months, "max", services.MaxHistoryMonths)
		os.Exit(2)
	}
	if !backend.BackendType(cfg.DataBackend).Persistent() {
		logger.Warn("Seeding a non-persistent backend; the data is gone when this command exits",
			"backend", cfg.DataBackend)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	backendRes := cli.InitStore(ctx, logger, cfg)
	if backendRes.Cleanup != nil {
		defer func() {
			if err := backendRes.Cleanup(); err != nil {
				logger.Warn("Store close error", log.FieldError, err)
			}
		}()
	}
	st := backendRes.Store

	tokens, err := auth.NewTokens(cli.SessionSecret(logger, cfg), cfg.SessionTTL)
	if err != nil {
		logger.Error("Failed to initialize session tokens", log.FieldError, err)
		os.Exit(1)
	}
	authSvc, err := auth.NewService(st, tokens, cfg.BcryptCost, logger)
	if err != nil {
		logger.Error("Failed to initialize auth service", log.FieldError, err)
		os.Exit(1)
	}

	var publisher services.EventPublisher
	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		publisher = amqpClient
		defer amqpClient.Close()
	}
	txSvc := services.NewTransactionService(st, publisher, nil, logger)

	faker := gofakeit.New(opts.seed)
	if opts.name == "" {
		opts.name = faker.Name()
	}

	user, err := demoUser(ctx, authSvc, opts)
	if err != nil {
		logger.Error("Failed to prepare demo user", log.FieldError, err, "email", opts.email)
		os.Exit(1)
	}

	created := 0
	for _, t := range generate(faker, time.Now().UTC(), opts.months) {
		if _, err := txSvc.Create(ctx, user.ID, t); err != nil {
			logger.Error("Failed to create transaction", log.FieldError, err,
				log.FieldCategory, t.Category, "date", t.OccurredOn.String())
			os.Exit(1)
		}
		created++
	}

	logger.Info("Demo data seeded",
		log.FieldUserID, user.ID,
		"email", user.Email,
		"months", opts.months,
		"transactions", created)
}

// demoUser registers the demo account, or signs in when it already exists.
func demoUser(ctx context.Context, authSvc *auth.Service, opts options) (core.User, error) {
	u, err := authSvc.Register(ctx, opts.email, opts.password, opts.name)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, core.ErrConflict) {
		return core.User{}, err
	}
	sess, err := authSvc.Authenticate(ctx, opts.email, opts.password)
	if err != nil {
		return core.User{}, err
	}
	return sess.User, nil
}

// generate builds months of history ending with the month of now. Every
// month gets one salary on the 27th, a rent payment and a handful of
// everyday expenses; some months also carry freelance income or a savings
// transfer. Nothing is dated after now.
func generate(faker *gofakeit.Faker, now time.Time, months int) []core.Transaction {
	today := core.DateOf(now)
	salary := int64(faker.Number(1800, 3200)) * 100
	rent := int64(faker.Number(550, 1100)) * 100

	var out []core.Transaction
	add := func(t core.Transaction) {
		if !t.OccurredOn.After(today.Time) {
			out = append(out, t)
		}
	}

	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)
	for i := 0; i < months; i++ {
		month := first.AddDate(0, i, 0)
		y, m := month.Year(), month.Month()
		days := time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()

		add(core.Transaction{
			Kind:       core.KindIncome,
			Title:      "Monthly salary",
			Amount:     core.Money{Cents: salary + int64(faker.Number(-50, 50))*100},
			Category:   core.CategorySalary,
			OccurredOn: core.NewDate(y, m, 27),
		})
		add(core.Transaction{
			Kind:       core.KindExpense,
			Title:      "Rent",
			Amount:     core.Money{Cents: rent},
			Category:   "Housing",
			OccurredOn: core.NewDate(y, m, 1),
		})

		for n := faker.Number(8, 18); n > 0; n-- {
			category := faker.RandomString([]string{"Food", "Food", "Transport", "Leisure", "Health", "Housing", "Other"})
			add(core.Transaction{
				Kind:       core.KindExpense,
				Title:      faker.RandomString(expenseTitles[category]),
				Amount:     core.Money{Cents: int64(faker.Number(300, 12000))},
				Category:   category,
				OccurredOn: core.NewDate(y, m, faker.Number(1, days)),
				Note:       optionalNote(faker),
			})
		}

		if faker.Number(1, 4) == 1 {
			add(core.Transaction{
				Kind:       core.KindIncome,
				Title:      faker.Company() + " invoice",
				Amount:     core.Money{Cents: int64(faker.Number(200, 900)) * 100},
				Category:   "Freelance",
				OccurredOn: core.NewDate(y, m, faker.Number(1, days)),
			})
		}
		if faker.Number(1, 3) == 1 {
			add(core.Transaction{
				Kind:       core.KindExpense,
				Title:      core.SavingsTitle,
				Amount:     core.Money{Cents: int64(faker.Number(100, 400)) * 100},
				Category:   core.CategorySavings,
				OccurredOn: core.NewDate(y, m, 28),
			})
		}
	}
	return out
}

func optionalNote(faker *gofakeit.Faker) string {
	if faker.Number(1, 5) > 1 {
		return ""
	}
	return faker.Sentence(4)
}
