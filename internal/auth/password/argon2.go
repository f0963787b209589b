// Пакет password — хэширование паролей argon2id.
package password

import (
	"errors"

	"github.com/alexedwards/argon2id"
)

// MinLength — минимальная длина пароля.
const MinLength = 8

// ErrTooShort — пароль короче MinLength.
var ErrTooShort = errors.New("пароль должен содержать не менее 8 символов")

// Hasher хэширует и проверяет пароли.
type Hasher struct {
	params *argon2id.Params
}

// NewDefault создаёт Hasher с параметрами argon2id по умолчанию.
func NewDefault() *Hasher {
	return &Hasher{params: argon2id.DefaultParams}
}

// New создаёт Hasher с заданными параметрами (в тестах — облегчёнными).
func New(p *argon2id.Params) *Hasher { return &Hasher{params: p} }

// Hash возвращает строку формата $argon2id$v=19$m=...,
// которую можно хранить в БД.
func (h *Hasher) Hash(plain string) (string, error) {
	if h == nil || h.params == nil {
		return "", errors.New("параметры argon2id не заданы")
	}
	if len([]rune(plain)) < MinLength {
		return "", ErrTooShort
	}
	return argon2id.CreateHash(plain, h.params)
}

// Verify сравнивает пароль с сохранённым хэшем.
// Повреждённый хэш считается несовпадением.
func (h *Hasher) Verify(plain, encodedHash string) bool {
	ok, err := argon2id.ComparePasswordAndHash(plain, encodedHash)
	return err == nil && ok
}
