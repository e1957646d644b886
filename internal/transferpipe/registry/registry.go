package registry

import "strings"

const (
	SystemProgram = "11111111111111111111111111111111"

	TokenProgram     = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022Program = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"

	NativeSymbol   = "SOL"
	NativeDecimals = 9
)

// Token is a tracked fungible asset.
type Token struct {
	Mint     string `yaml:"mint"`
	Symbol   string `yaml:"symbol"`
	Decimals uint8  `yaml:"decimals"`
}

// DefaultTokens are the mints tracked out of the box. Wrapped SOL is reported
// under the native symbol.
var DefaultTokens = []Token{
	{Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Symbol: "USDC", Decimals: 6},
	{Mint: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", Symbol: "USDT", Decimals: 6},
	{Mint: "33fsBLA8djQm82RpHmE3SuVrPGtZBWNYExsEUeKX1HXX", Symbol: "BUSD", Decimals: 8},
	{Mint: "EjmyN6qEC1Tf1JxiG1ae7UTJhUxSwk1TCWNWqxWV4J6o", Symbol: "DAI", Decimals: 8},
	{Mint: "9zNQRsGLjNKwCUU5Gq5LR8beUCPzQMVMqKAi3SSZh54u", Symbol: "FDUSD", Decimals: 6},
	{Mint: "2b1kV6DkPAnxd5ixfnxCpjxmKwqjjaYmCZfHsFu24GXo", Symbol: "PYUSD", Decimals: 6},
	{Mint: "USDSwr9ApdHk5bvJKMjzff41FfuX8bSxdKcR81vTwcA", Symbol: "USDS", Decimals: 6},
	{Mint: "So11111111111111111111111111111111111111112", Symbol: NativeSymbol, Decimals: NativeDecimals},
}

// Registry answers "is this a program/mint we care about". It is never mutated
// after New returns, so one instance is shared by every worker without locking.
type Registry struct {
	tokens        map[string]Token
	tokenPrograms map[string]struct{}
	systemProgram string
}

func New(tokens []Token, tokenPrograms []string, systemProgram string) *Registry {
	r := &Registry{
		tokens:        make(map[string]Token, len(tokens)),
		tokenPrograms: make(map[string]struct{}, len(tokenPrograms)),
		systemProgram: systemProgram,
	}
	for _, t := range tokens {
		t.Mint = strings.TrimSpace(t.Mint)
		if t.Mint == "" || t.Symbol == "" {
			continue
		}
		r.tokens[t.Mint] = t
	}
	for _, p := range tokenPrograms {
		r.tokenPrograms[p] = struct{}{}
	}
	return r
}

// Default returns the registry with DefaultTokens plus extra (extra wins on
// mint collisions).
func Default(extra ...Token) *Registry {
	tokens := make([]Token, 0, len(DefaultTokens)+len(extra))
	tokens = append(tokens, DefaultTokens...)
	tokens = append(tokens, extra...)
	return New(tokens, []string{TokenProgram, Token2022Program}, SystemProgram)
}

func (r *Registry) Token(mint string) (Token, bool) {
	t, ok := r.tokens[mint]
	return t, ok
}

func (r *Registry) IsTokenProgram(programID string) bool {
	_, ok := r.tokenPrograms[programID]
	return ok
}

func (r *Registry) IsSystemProgram(programID string) bool {
	return programID == r.systemProgram
}

func (r *Registry) Len() int { return len(r.tokens) }
