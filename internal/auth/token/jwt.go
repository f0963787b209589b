// Пакет token — выпуск и проверка bearer-токенов (JWT, HMAC).
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalid — токен не прошёл проверку (подпись, срок, формат).
var ErrInvalid = errors.New("невалидный токен")

// Claims — проверенное содержимое токена.
type Claims struct {
	// JTI — уникальный идентификатор токена (для отзыва)
	JTI string
	// UserID — идентификатор пользователя (sub)
	UserID int64
	// Role — роль на момент выпуска
	Role string
	// IssuedAt — время выпуска
	IssuedAt time.Time
	// ExpiresAt — время истечения
	ExpiresAt time.Time
}

// jwtClaims — внутренний тип для подписи и парсинга.
type jwtClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Manager выпускает и проверяет токены.
type Manager struct {
	secret []byte
	method jwt.SigningMethod
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// New создаёт Manager. algorithm — HS256, HS384 или HS512.
func New(secret, algorithm, issuer string, ttl time.Duration) (*Manager, error) {
	method := jwt.GetSigningMethod(algorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("неподдерживаемый алгоритм подписи %q", algorithm)
	}
	if secret == "" {
		return nil, errors.New("пустой секрет подписи")
	}
	return &Manager{
		secret: []byte(secret),
		method: method,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL возвращает время жизни выпускаемых токенов.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue выпускает токен для пользователя.
func (m *Manager) Issue(userID int64, role string) (string, Claims, error) {
	now := m.now().UTC()
	jti := uuid.NewString()

	cl := jwtClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	signed, err := jwt.NewWithClaims(m.method, cl).SignedString(m.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("ошибка подписи токена: %w", err)
	}

	return signed, Claims{
		JTI:       jti,
		UserID:    userID,
		Role:      role,
		IssuedAt:  cl.IssuedAt.Time,
		ExpiresAt: cl.ExpiresAt.Time,
	}, nil
}

// Parse проверяет подпись, алгоритм, срок действия и issuer.
// Любая ошибка возвращается как ErrInvalid с причиной.
func (m *Manager) Parse(raw string) (Claims, error) {
	var out jwtClaims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	tkn, err := jwt.ParseWithClaims(raw, &out, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !tkn.Valid {
		return Claims{}, ErrInvalid
	}

	userID, err := strconv.ParseInt(out.Subject, 10, 64)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: некорректный sub %q", ErrInvalid, out.Subject)
	}

	cl := Claims{
		JTI:    out.ID,
		UserID: userID,
		Role:   out.Role,
	}
	if out.IssuedAt != nil {
		cl.IssuedAt = out.IssuedAt.Time
	}
	if out.ExpiresAt != nil {
		cl.ExpiresAt = out.ExpiresAt.Time
	}
	return cl, nil
}
