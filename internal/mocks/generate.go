package mocks

// Mock generation directives. Run `go generate ./internal/mocks/` to regenerate.

//go:generate go run go.uber.org/mock/mockgen -source=../core/auth.go -destination=mock_verifier.go -package=mocks
//go:generate go run go.uber.org/mock/mockgen -source=../directory/conn.go -destination=mock_conn.go -package=mocks
