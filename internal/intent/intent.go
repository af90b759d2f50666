// Package intent classifies user messages into routing intents with
// keyword and pattern rules.
package intent

import (
	"regexp"
	"strings"
)

// Routing intents.
const (
	PriceQuery  = "price_query"
	WalletQuery = "wallet_query"
	Web3Chat    = "web3_chat"
	GeneralChat = "general_chat"
	NonWeb3     = "non_web3"
)

// assetMapping maps symbols and names users type to CoinGecko asset ids.
var assetMapping = map[string]string{
	"bitcoin": "bitcoin", "btc": "bitcoin",
	"ethereum": "ethereum", "eth": "ethereum",
	"cardano": "cardano", "ada": "cardano",
	"solana": "solana", "sol": "solana",
	"polkadot": "polkadot", "dot": "polkadot",
	"polygon": "matic-network", "matic": "matic-network",
	"chainlink": "chainlink", "link": "chainlink",
	"uniswap": "uniswap", "uni": "uniswap",
	"litecoin": "litecoin", "ltc": "litecoin",
	"ripple": "ripple", "xrp": "ripple",
	"binancecoin": "binancecoin", "bnb": "binancecoin",
	"dogecoin": "dogecoin", "doge": "dogecoin",
}

var priceWords = []string{"price", "cost", "worth", "value", "how much"}

var web3Keywords = []string{
	"defi", "decentralized finance", "blockchain", "web3", "nft",
	"smart contract", "dao", "yield farming", "staking", "liquidity", "amm",
	"crypto", "rollup", "layer 2", "gas fee",
}

var walletKeywords = []string{"wallet", "balance", "portfolio", "my account"}

var offTopicKeywords = []string{
	"weather", "food", "movie", "music", "sports", "health", "travel",
}

var greetingPattern = regexp.MustCompile(`^\s*(hi|hello|hey|good\s+(morning|afternoon|evening)|thanks|thank you|bye)\b`)

var assetExtractPatterns = []*regexp.Regexp{
	regexp.MustCompile(`price\s+of\s+(\w+)`),
	regexp.MustCompile(`(\w+)\s+price`),
	regexp.MustCompile(`how\s+much\s+is\s+(\w+)`),
	regexp.MustCompile(`(\w+)\s+(?:cost|value|worth)`),
	regexp.MustCompile(`current\s+(\w+)`),
}

// Classify returns the routing intent for one user message.
func Classify(message string) string {
	lower := strings.ToLower(strings.TrimSpace(message))
	if lower == "" {
		return GeneralChat
	}

	hasAsset := mentionsAsset(lower)

	if hasAsset && containsAny(lower, priceWords) {
		return PriceQuery
	}
	if containsAny(lower, walletKeywords) {
		return WalletQuery
	}
	if containsAny(lower, web3Keywords) || hasAsset {
		return Web3Chat
	}
	if containsAny(lower, offTopicKeywords) {
		return NonWeb3
	}
	if greetingPattern.MatchString(lower) {
		return GeneralChat
	}
	// Ambiguous messages stay in domain so the assistant can answer.
	return Web3Chat
}

// AssetID maps a user-facing symbol or name to its CoinGecko asset id.
func AssetID(symbol string) (string, bool) {
	id, ok := assetMapping[strings.ToLower(strings.TrimSpace(symbol))]
	return id, ok
}

// assetOrder fixes the lookup order so multi-asset messages resolve the
// same way every time.
var assetOrder = []string{
	"bitcoin", "btc", "ethereum", "eth", "cardano", "ada", "solana", "sol",
	"polkadot", "dot", "polygon", "matic", "chainlink", "link", "uniswap",
	"uni", "litecoin", "ltc", "ripple", "xrp", "binancecoin", "bnb",
	"dogecoin", "doge",
}

// ExtractAsset returns the CoinGecko asset id a price query refers to,
// defaulting to bitcoin when nothing matches.
func ExtractAsset(message string) string {
	words := tokenize(message)

	for _, key := range assetOrder {
		if words[key] {
			return assetMapping[key]
		}
	}
	lower := strings.ToLower(message)
	for _, pattern := range assetExtractPatterns {
		m := pattern.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		if id, ok := assetMapping[m[1]]; ok {
			return id
		}
	}
	return "bitcoin"
}

func mentionsAsset(lower string) bool {
	words := tokenize(lower)
	for _, key := range assetOrder {
		if words[key] {
			return true
		}
	}
	return false
}

// tokenize splits a message into a lowercase word set, so short symbols
// like "sol" or "dot" only match whole words.
func tokenize(s string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}
