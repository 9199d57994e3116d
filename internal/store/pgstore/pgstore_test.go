package pgstore

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/G-Zak/jobgate-career-quest-sub004/internal/store/storetest"
)

func TestPostgresSessionStore(t *testing.T) {
	url := os.Getenv("CAREERQUEST_TEST_PG_URL")
	if url == "" {
		t.Skip("CAREERQUEST_TEST_PG_URL not set")
	}

	s, err := Open(url)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	storetest.RunSessionStore(t, s, fmt.Sprintf("pg-%d-", time.Now().UnixNano()))
}
