package memory

import (
	"testing"

	"fintrack/internal/ports"
	"fintrack/internal/ports/porttest"

	"github.com/stretchr/testify/suite"
)

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &porttest.StoreSuite{
		NewStore: func() ports.Store { return New() },
	})
}
