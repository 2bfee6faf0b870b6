package database

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tgmkubi/restaurant-sst-api/pkg/config"
)

// poolParams are the query keys owned by the pool profile. Matching keys in the
// stored URI are dropped so the profile always wins.
var poolParams = []string{
	"maxPoolSize",
	"minPoolSize",
	"maxIdleTimeMS",
	"serverSelectionTimeoutMS",
	"socketTimeoutMS",
	"connectTimeoutMS",
}

// BuildURI points a stored connection URI at the named database and appends
// the pool profile: mongodb://host/?opt=1 becomes
// mongodb://host/<name>?opt=1&maxPoolSize=..&minPoolSize=..
//
// The URI is handled as text since seed lists with several hosts are not
// valid for net/url.
func BuildURI(base string, name Name, pool config.PoolConfig) (string, error) {
	scheme, rest, ok := strings.Cut(strings.TrimSpace(base), "://")
	if !ok || (scheme != "mongodb" && scheme != "mongodb+srv") {
		return "", fmt.Errorf("%w: unsupported scheme", ErrInvalidURI)
	}

	rest, query, _ := strings.Cut(rest, "?")
	hosts, _, _ := strings.Cut(rest, "/")
	if hosts == "" || strings.HasSuffix(hosts, "@") {
		return "", fmt.Errorf("%w: no host", ErrInvalidURI)
	}

	var params []string
	for _, kv := range strings.Split(query, "&") {
		if kv == "" {
			continue
		}
		key, _, _ := strings.Cut(kv, "=")
		if isPoolParam(key) {
			continue
		}
		params = append(params, kv)
	}
	params = append(params,
		"maxPoolSize="+strconv.FormatUint(pool.MaxPoolSize, 10),
		"minPoolSize="+strconv.FormatUint(pool.MinPoolSize, 10),
		"maxIdleTimeMS="+strconv.FormatInt(pool.MaxIdleTime.Milliseconds(), 10),
		"serverSelectionTimeoutMS="+strconv.FormatInt(pool.ServerSelectionTimeout.Milliseconds(), 10),
		"socketTimeoutMS="+strconv.FormatInt(pool.SocketTimeout.Milliseconds(), 10),
		"connectTimeoutMS="+strconv.FormatInt(pool.ConnectTimeout.Milliseconds(), 10),
	)

	return scheme + "://" + hosts + "/" + string(name) + "?" + strings.Join(params, "&"), nil
}

func isPoolParam(key string) bool {
	for _, p := range poolParams {
		if strings.EqualFold(p, key) {
			return true
		}
	}
	return false
}
