package strategy

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Catalog names of the built-in proxies.
const (
	NameDDG           = "DDG"
	NamePocket        = "Pocket"
	NameFileStack     = "FileStack"
	NameSteemitImages = "SteemitImages"
)

// DefaultChain is the fallback order used when none is configured.
var DefaultChain = []string{NameDDG, NameSteemitImages}

const (
	ddgPrefix        = "https://proxy.duckduckgo.com/iu/?u="
	pocketDirect     = "https://pocket-image-cache.com/direct?url="
	pocketCloudfront = "https://d3du9nefdtilsa.cloudfront.net/unsafe/fit-in/x/smart/filters%3Ano_upscale()/"
	fileStackPrefix  = "https://process.filestackapi.com/AhTgLagciQByzXpFGRI0Az/"
	steemitPrefix    = "https://steemitimages.com/0x0/"
)

var (
	ddgPattern       = regexp.MustCompile(`^https://proxy\.duckduckgo\.com`)
	pocketPattern    = regexp.MustCompile(`(^https://pocket-image-cache\.com/direct\?url=)|(cloudfront\.net/unsafe/fit-in/x/smart/filters%3Ano_upscale\(\)/)`)
	fileStackPattern = regexp.MustCompile(`https://process\.filestackapi\.com/.+/`)
	steemitPattern   = regexp.MustCompile(`https://steemitimages\.com/(p|0x0)/`)
	imageExtPattern  = regexp.MustCompile(`(?i)\.(jpg|jpeg|tiff|png|gif)($|[?&])`)
	ddgReloadPattern = regexp.MustCompile(`&reload=on|%26reload%3Don`)
)

// proxy is a prefix-style image proxy described by plain functions.
type proxy struct {
	name    string
	tag     string
	matches func(u string) bool
	apply   func(u string) string
	reverse func(u string) string
}

func (p *proxy) Name() string          { return p.name }
func (p *proxy) Tag() string           { return p.tag }
func (p *proxy) Matches(u string) bool { return p.matches(u) }

func (p *proxy) Apply(u string) string {
	if !Transformable(u) || p.matches(u) {
		return u
	}
	return p.apply(u)
}

func (p *proxy) Reverse(u string) string {
	if !p.matches(u) || p.reverse == nil {
		return u
	}
	if r := p.reverse(u); r != "" {
		return r
	}
	return u
}

// DDG routes through the DuckDuckGo image proxy.
func DDG() Strategy {
	return &proxy{
		name:    NameDDG,
		tag:     "#FFA500",
		matches: ddgPattern.MatchString,
		apply: func(u string) string {
			return ddgPrefix + url.QueryEscape(u) + "&f=1"
		},
		reverse: func(u string) string {
			parsed, err := url.Parse(ddgReloadPattern.ReplaceAllString(u, ""))
			if err != nil {
				return ""
			}
			return parsed.Query().Get("u")
		},
	}
}

// Pocket routes through the Pocket image cache.
func Pocket() Strategy {
	return &proxy{
		name:    NamePocket,
		tag:     "#e082df",
		matches: pocketPattern.MatchString,
		apply: func(u string) string {
			return pocketDirect + u
		},
		// The direct form embeds the target unescaped, so everything after the
		// prefix is taken verbatim.
		reverse: func(u string) string {
			switch {
			case strings.HasPrefix(u, pocketCloudfront):
				return strings.TrimPrefix(u, pocketCloudfront)
			case strings.HasPrefix(u, pocketDirect):
				return strings.TrimPrefix(u, pocketDirect)
			}
			return ""
		},
	}
}

// FileStack routes through the FileStack processing API.
func FileStack() Strategy {
	return &proxy{
		name:    NameFileStack,
		tag:     "#acb300",
		matches: fileStackPattern.MatchString,
		apply: func(u string) string {
			return fileStackPrefix + url.QueryEscape(strings.TrimSpace(u))
		},
		reverse: func(u string) string {
			if !strings.HasPrefix(u, fileStackPrefix) {
				return ""
			}
			r, err := url.QueryUnescape(strings.TrimPrefix(u, fileStackPrefix))
			if err != nil {
				return ""
			}
			return r
		},
	}
}

// SteemitImages routes image-extension URLs through steemitimages.com.
// Reverse only understands the 0x0 form.
func SteemitImages() Strategy {
	return &proxy{
		name:    NameSteemitImages,
		tag:     "#0074B3",
		matches: steemitPattern.MatchString,
		apply: func(u string) string {
			if !imageExtPattern.MatchString(u) {
				return u
			}
			return steemitPrefix + strings.TrimSpace(u)
		},
		reverse: func(u string) string {
			return strings.Replace(u, steemitPrefix, "", 1)
		},
	}
}

var catalog = map[string]func() Strategy{
	NameDDG:           DDG,
	NamePocket:        Pocket,
	NameFileStack:     FileStack,
	NameSteemitImages: SteemitImages,
}

// Builtin returns a fresh instance of the named catalog strategy.
func Builtin(name string) (Strategy, error) {
	ctor, ok := catalog[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStrategyNotFound, name)
	}
	return ctor(), nil
}

// BuiltinNames lists the catalog in a stable order.
func BuiltinNames() []string {
	return []string{NameFileStack, NameSteemitImages, NameDDG, NamePocket}
}
