package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time is used for timezone resolution and durations
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Secrets are strings, durations and counts
// are ints.  Provider credential blocks are injected into the payment
// adapters at construction time; nothing in this package is mutated
// after Load returns.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	DBUser    string // database username
	DBPass    string // database password (optional)
	DBHost    string // database host address
	DBPort    string // database port number
	DBName    string // database name
	JWTSecret string // secret used to verify staff JWTs
	QRSecret  string // secret used to sign ticket QR payloads

	BookingTZ        *time.Location // reference timezone for refund windows and provider timestamps
	BoardingGraceMin int            // minutes after departure during which boarding is still accepted

	OTPTTL         time.Duration // lifetime of a guest-lookup OTP challenge
	OTPMaxAttempts int           // failed verify attempts before the challenge is locked

	VNPay   VNPayCredentials   // bank-style redirect gateway
	MoMo    MoMoCredentials    // wallet gateway
	ZaloPay ZaloPayCredentials // wallet gateway
}

// VNPayCredentials carries the per-merchant secrets and endpoints for the
// VNPay redirect gateway.  The HashSecret signs the sorted, URL-encoded
// parameter string with HMAC-SHA512.
type VNPayCredentials struct {
	TmnCode    string // merchant terminal code (vnp_TmnCode)
	HashSecret string // HMAC-SHA512 signing secret
	PayURL     string // hosted payment page base URL
	APIURL     string // merchant transaction API (refund/query)
	ReturnURL  string // URL the customer is redirected back to
}

// MoMoCredentials carries the MoMo partner identity.  The SecretKey signs
// the fixed-order request string with HMAC-SHA256.
type MoMoCredentials struct {
	PartnerCode string // partner code issued by MoMo
	AccessKey   string // access key, first field of the signed string
	SecretKey   string // HMAC-SHA256 signing secret
	Endpoint    string // create-payment API endpoint
	RedirectURL string // post-payment browser redirect
	IPNURL      string // server-to-server notification URL
}

// ZaloPayCredentials carries the ZaloPay application identity.  Key1
// signs outbound requests; Key2 verifies inbound callbacks.
type ZaloPayCredentials struct {
	AppID    string // numeric application id as issued
	Key1     string // HMAC-SHA256 secret for outbound request signing
	Key2     string // HMAC-SHA256 secret for callback verification
	Endpoint string // create-order API endpoint
}

// Load reads configuration values from environment variables and returns
// a Config.  Required variables are enforced by must(); missing values
// cause the program to exit with a fatal log message.  Optional knobs
// fall back to documented defaults.
func Load() Config {
	tz := time.UTC
	if name := os.Getenv("BOOKING_TIMEZONE"); name != "" {
		loc, err := time.LoadLocation(name)
		if err != nil {
			log.Fatalf("invalid BOOKING_TIMEZONE %q: %v", name, err)
		}
		tz = loc
	}
	return Config{
		Env:       must("APP_ENV"),
		Port:      must("APP_PORT"),
		DBUser:    must("DB_USER"),
		DBPass:    os.Getenv("DB_PASS"), // empty allowed
		DBHost:    must("DB_HOST"),
		DBPort:    must("DB_PORT"),
		DBName:    must("DB_NAME"),
		JWTSecret: must("JWT_SECRET"),
		QRSecret:  must("QR_SECRET"),

		BookingTZ:        tz,
		BoardingGraceMin: intOr("BOARDING_GRACE_MIN", 30),

		OTPTTL:         time.Duration(intOr("OTP_TTL_MIN", 5)) * time.Minute,
		OTPMaxAttempts: intOr("OTP_MAX_ATTEMPTS", 5),

		VNPay: VNPayCredentials{
			TmnCode:    must("VNPAY_TMN_CODE"),
			HashSecret: must("VNPAY_HASH_SECRET"),
			PayURL:     must("VNPAY_PAY_URL"),
			APIURL:     must("VNPAY_API_URL"),
			ReturnURL:  must("VNPAY_RETURN_URL"),
		},
		MoMo: MoMoCredentials{
			PartnerCode: must("MOMO_PARTNER_CODE"),
			AccessKey:   must("MOMO_ACCESS_KEY"),
			SecretKey:   must("MOMO_SECRET_KEY"),
			Endpoint:    must("MOMO_ENDPOINT"),
			RedirectURL: must("MOMO_REDIRECT_URL"),
			IPNURL:      must("MOMO_IPN_URL"),
		},
		ZaloPay: ZaloPayCredentials{
			AppID:    must("ZALOPAY_APP_ID"),
			Key1:     must("ZALOPAY_KEY1"),
			Key2:     must("ZALOPAY_KEY2"),
			Endpoint: must("ZALOPAY_ENDPOINT"),
		},
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// intOr retrieves an integer environment variable, falling back to the
// provided default when unset.  Invalid integers are fatal.
func intOr(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
