// Пакет auth — кодек подписанных токенов Filevault.
//
// Два вида токенов над одним общим секретом (HS256/HS384/HS512):
//   - сессионный токен — подтверждает аутентифицированную личность
//     для обычных API-вызовов (aud = "api-session");
//   - download-токен — краткоживущая возможность скачать один файл
//     одним пользователем (aud = "file-download").
//
// Виды не взаимозаменяемы: audience — обязательный дискриминант,
// проверяемый при декодировании. Сессионный токен, предъявленный как
// download-токен, отклоняется, и наоборот. Expiry обязателен и
// проверяется при декодировании независимо от валидности подписи.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Audience-дискриминанты видов токенов.
const (
	// AudienceSession — сессионный токен для обычных API-вызовов
	AudienceSession = "api-session"
	// AudienceDownload — токен на скачивание одного файла
	AudienceDownload = "file-download"
)

// ErrInvalidToken — токен не прошёл проверку: подпись, структура,
// audience или срок действия. Детали намеренно не раскрываются.
var ErrInvalidToken = errors.New("невалидный или просроченный токен")

// SessionClaims — утверждения сессионного токена.
type SessionClaims struct {
	jwt.RegisteredClaims
	// UserID — идентификатор пользователя
	UserID int64 `json:"user_id"`
	// Role — роль на момент входа. Подсказка: перед операциями роль
	// разрешается заново из хранилища.
	Role string `json:"role"`
}

// DownloadClaims — утверждения download-токена.
// Токен — грант возможности, не обход авторизации: владение и статус
// проверки файла перепроверяются при погашении.
type DownloadClaims struct {
	jwt.RegisteredClaims
	// FileID — идентификатор файла, на который выдан грант
	FileID int64 `json:"file_id"`
	// UserID — пользователь, от имени которого выполняется скачивание
	UserID int64 `json:"user_id"`
}

// Codec — кодек подписанных токенов над общим секретом.
type Codec struct {
	secret      []byte
	method      jwt.SigningMethod
	sessionTTL  time.Duration
	downloadTTL time.Duration
}

// NewCodec создаёт кодек токенов.
// alg — идентификатор алгоритма подписи (HS256, HS384, HS512).
func NewCodec(secret string, alg string, sessionTTL, downloadTTL time.Duration) (*Codec, error) {
	method := jwt.GetSigningMethod(alg)
	if method == nil {
		return nil, fmt.Errorf("неизвестный алгоритм подписи: %q", alg)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("алгоритм %q не поддерживается: допустимы HS256, HS384, HS512", alg)
	}

	return &Codec{
		secret:      []byte(secret),
		method:      method,
		sessionTTL:  sessionTTL,
		downloadTTL: downloadTTL,
	}, nil
}

// SessionTTL возвращает срок действия сессионного токена.
func (c *Codec) SessionTTL() time.Duration {
	return c.sessionTTL
}

// DownloadTTL возвращает срок действия download-токена.
func (c *Codec) DownloadTTL() time.Duration {
	return c.downloadTTL
}

// IssueSession выпускает сессионный токен для пользователя.
func (c *Codec) IssueSession(userID int64, role string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{AudienceSession},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.sessionTTL)),
		},
		UserID: userID,
		Role:   role,
	}

	token := jwt.NewWithClaims(c.method, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("подпись сессионного токена: %w", err)
	}
	return signed, nil
}

// VerifySession декодирует и проверяет сессионный токен.
// Любой дефект (подпись, структура, audience, expiry) → ErrInvalidToken.
func (c *Codec) VerifySession(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := c.verify(tokenString, claims, AudienceSession); err != nil {
		return nil, err
	}
	if claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueDownload выпускает download-токен на файл fileID для пользователя userID.
func (c *Codec) IssueDownload(fileID, userID int64) (string, error) {
	now := time.Now()
	claims := DownloadClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{AudienceDownload},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.downloadTTL)),
		},
		FileID: fileID,
		UserID: userID,
	}

	token := jwt.NewWithClaims(c.method, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("подпись download-токена: %w", err)
	}
	return signed, nil
}

// VerifyDownload декодирует и проверяет download-токен.
// Сессионный токен здесь отклоняется по несовпадению audience.
func (c *Codec) VerifyDownload(tokenString string) (*DownloadClaims, error) {
	claims := &DownloadClaims{}
	if err := c.verify(tokenString, claims, AudienceDownload); err != nil {
		return nil, err
	}
	if claims.FileID == 0 || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// verify — общая проверка подписи, алгоритма, audience и expiry.
func (c *Codec) verify(tokenString string, claims jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(_ *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
