package webhook

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterAllow(t *testing.T) {
	f := NewFilter("tenant-a")

	require.True(t, f.Allow(map[string]string{MetaTenantID: "tenant-a"}))
	require.False(t, f.Allow(map[string]string{MetaTenantID: "tenant-b"}))

	// no tenant metadata at all passes on the permissive default
	require.True(t, f.Allow(map[string]string{MetaUserID: "42"}))
	require.True(t, f.Allow(map[string]string{MetaTenantID: ""}))
	require.True(t, f.Allow(nil))
}
