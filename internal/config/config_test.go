package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillDefaults(t *testing.T) {
	var c Config
	c.FillDefaults()
	assert.Equal(t, "info", c.App.LogLevel)
	assert.Equal(t, "redis", c.Store.Driver)
	assert.Equal(t, 2, c.Feeds.ItemsPerFeed)
	assert.Equal(t, 3, c.Pipeline.Promotions())
	assert.Equal(t, "post", c.Pipeline.PromoteAs)
	assert.Equal(t, 1, c.Pipeline.Workers)
	assert.NotEmpty(t, c.Feeds.UserAgent)
}

func TestValidateRequiresCredentials(t *testing.T) {
	var c Config
	c.FillDefaults()
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai.api_key")

	c.OpenAI.APIKey = "sk-test"
	assert.NoError(t, c.Validate())
}

func TestValidateSanityDriver(t *testing.T) {
	c := Config{Store: StoreConfig{Driver: "Sanity"}, OpenAI: OpenAIConfig{APIKey: "k"}}
	c.FillDefaults()
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sanity.project_id")
	assert.Contains(t, err.Error(), "sanity.token")

	c.Sanity.ProjectID = "abc123"
	c.Sanity.Token = "tok"
	assert.NoError(t, c.Validate())
}

func TestValidateRejectsBadSettings(t *testing.T) {
	c := Config{OpenAI: OpenAIConfig{APIKey: "k"}, Pipeline: PipelineConfig{Workers: 9, IOTimeout: "soon"}}
	c.FillDefaults()
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.workers")
	assert.Contains(t, err.Error(), "pipeline.io_timeout")
}

func TestValidateStoreIgnoresOpenAI(t *testing.T) {
	var c Config
	c.FillDefaults()
	assert.NoError(t, c.ValidateStore())

	c.Store.Driver = "mongo"
	assert.ErrorContains(t, c.ValidateStore(), "store.driver")
}

func TestZeroPromoteLimitSurvivesDefaults(t *testing.T) {
	zero := 0
	c := Config{OpenAI: OpenAIConfig{APIKey: "k"}, Pipeline: PipelineConfig{PromoteLimit: &zero}}
	c.FillDefaults()
	require.NoError(t, c.Validate())
	assert.Equal(t, 0, c.Pipeline.Promotions())
}

func TestValidateRejectsNegativeLimitAndUnknownTarget(t *testing.T) {
	neg := -1
	c := Config{OpenAI: OpenAIConfig{APIKey: "k"}, Pipeline: PipelineConfig{PromoteLimit: &neg, PromoteAs: "tweet"}}
	c.FillDefaults()
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.promote_limit")
	assert.Contains(t, err.Error(), "pipeline.promote_as")
}
