package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alovak/terminal-playground/gateway/models"
	"github.com/alovak/terminal-playground/internal/notify"
	"github.com/alovak/terminal-playground/internal/pan"
	"github.com/alovak/terminal-playground/internal/protocol"
	"github.com/alovak/terminal-playground/internal/validation"
	"github.com/alovak/terminal-playground/terminal"
	"github.com/joho/godotenv"
	"golang.org/x/exp/slog"
)

var (
	flagGateway = flag.String("gateway", "", "gateway base URL (default $GATEWAY_URL or http://localhost:9000)")
	flagExpiry  = flag.String("expiry-policy", "lenient", "local expiry check: lenient|strict")
	flagVerbose = flag.Bool("verbose", false, "log requests and connectivity changes")
)

const usage = `usage: terminal [flags] <command> [args]

commands:
  info                 show merchant and terminal identifiers
  protocols            list POS protocols and their approval code rules
  pay [flags]          submit a payment (see: terminal pay -h)
  get <id>             show a transaction
  void <id>            void an approved transaction
  history              list transactions, most recent first
  payout key=value...  store payout settings
  status               probe the gateway
  events               print gateway notifications until interrupted
`

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	level := slog.LevelWarn
	if *flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	policy := must1(validation.ParseExpiryPolicy(*flagExpiry))
	base := *flagGateway
	if base == "" {
		base = getenv("GATEWAY_URL", "http://localhost:9000")
	}

	client := terminal.NewClient(base, nil)
	session := terminal.NewSession(client, validation.Options{Expiry: policy}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := flag.Args()[1:]
	switch flag.Arg(0) {
	case "info":
		info := must1(session.Login(ctx))
		fmt.Printf("Merchant: %s\nTerminal: %s\n", info.MerchantID, info.TerminalID)
	case "protocols":
		for i, p := range must1(client.Protocols(ctx)) {
			fmt.Printf("%d. %-45s %d %s\n", i+1, p.Name, p.Length, p.Class)
		}
	case "pay":
		pay(ctx, session, args)
	case "get":
		printTransaction(must1(client.GetTransaction(ctx, arg(args, "transaction id"))))
	case "void":
		printTransaction(must1(session.Void(ctx, arg(args, "transaction id"))))
	case "history":
		must(session.Refresh(ctx))
		for _, t := range session.History() {
			fmt.Printf("%s  %-8s %10s %s  %s\n", t.ID, t.Status, t.Amount.StringFixed(2), t.Currency, t.Timestamp.Local().Format(time.DateTime))
		}
	case "payout":
		fmt.Println(must1(client.SavePayoutSettings(ctx, parseSettings(args))))
	case "status":
		if err := client.Status(ctx); err != nil {
			fail("OFFLINE: %v", err)
		}
		fmt.Println("ONLINE")
	case "events":
		sub := terminal.NewSubscriber(client, logger, func(n notify.Notification) {
			fmt.Printf("%s  %s  %-30s %s\n", n.Timestamp.Local().Format(time.TimeOnly), n.MTI, n.Description, n.TransactionID)
		})
		if err := sub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			fail("%v", err)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func pay(ctx context.Context, session *terminal.Session, args []string) {
	fs := flag.NewFlagSet("pay", flag.ExitOnError)
	amount := fs.String("amount", "", "amount, e.g. 100.00")
	currency := fs.String("currency", "USD", "ISO 4217 currency code")
	card := fs.String("card", "", "card number")
	expiry := fs.String("expiry", "", "expiry date MM/YY")
	cvv := fs.String("cvv", "", "card verification value")
	name := fs.String("name", "", "cardholder name")
	postal := fs.String("postal", "", "postal code (optional)")
	proto := fs.String("protocol", "1", "protocol name or its number from 'terminal protocols'")
	auth := fs.String("auth", "", "approval code issued for the protocol")
	txType := fs.String("type", models.DefaultTransactionType, "transaction type")
	fs.Parse(args)

	descriptor, err := resolveProtocol(*proto)
	must(err)

	code := filterAuthCode(os.Stderr, descriptor, *auth)

	value := must1(validation.ParseAmount(*amount))

	info := must1(session.Login(ctx))
	t, err := session.Submit(ctx, models.PaymentRequest{
		Amount:          value,
		Currency:        strings.ToUpper(*currency),
		CardNumber:      *card,
		ExpiryDate:      *expiry,
		CVV:             *cvv,
		CardholderName:  normalizeCardName(*name),
		PostalCode:      *postal,
		Protocol:        descriptor.Name,
		AuthCode:        code,
		TransactionType: *txType,
	})
	must(err)

	fmt.Printf("%s / %s\n", info.MerchantID, info.TerminalID)
	fmt.Printf("CARD: %s\n", pan.Mask(*card))
	printTransaction(t)
}

// filterAuthCode keeps what the protocol's keypad would accept and reports
// anything dropped or missing along with the expected format.
func filterAuthCode(w io.Writer, d protocol.Descriptor, input string) string {
	code := d.Filter(input)
	if state := d.State(code); code != input || state != protocol.StateValid {
		fmt.Fprintf(w, "auth code %q is %s, %s expects a %s\n", code, state, d.Name, d.Placeholder())
	}
	return code
}

func resolveProtocol(in string) (protocol.Descriptor, error) {
	all := protocol.All()
	if i, err := strconv.Atoi(in); err == nil {
		if i < 1 || i > len(all) {
			return protocol.Descriptor{}, fmt.Errorf("protocol number must be 1..%d", len(all))
		}
		return all[i-1], nil
	}
	return protocol.Lookup(in)
}

func printTransaction(t *models.Transaction) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(t)
}

// parseSettings turns key=value pairs into a settings object. Values that
// parse as JSON keep their type.
func parseSettings(args []string) map[string]any {
	settings := make(map[string]any, len(args))
	for _, kv := range args {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			fail("payout setting %q is not key=value", kv)
		}
		var parsed any
		if err := json.Unmarshal([]byte(v), &parsed); err == nil {
			settings[k] = parsed
		} else {
			settings[k] = v
		}
	}
	return settings
}

// normalizeCardName collapses whitespace and upper-cases the name the way it
// is embossed, at most 26 characters.
func normalizeCardName(name string) string {
	normalized := strings.Join(strings.Fields(name), " ")
	up := strings.ToUpper(normalized)
	if len(up) > 26 {
		return up[:26]
	}
	return up
}

func arg(args []string, what string) string {
	if len(args) == 0 || args[0] == "" {
		fail("%s is required", what)
	}
	return args[0]
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func must(err error) {
	if err != nil {
		fail("%v", err)
	}
}

func must1[T any](v T, err error) T {
	if err != nil {
		fail("%v", err)
	}
	return v
}

func fail(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
