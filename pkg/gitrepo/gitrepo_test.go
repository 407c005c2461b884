package gitrepo_test

import (
	"testing"

	"github.com/kapral18/semantic-code-search-indexer/pkg/gitrepo"
	"github.com/stretchr/testify/assert"
)

func TestStatusCodesMatchGitNameStatusLetters(t *testing.T) {
	assert.Equal(t, byte('A'), byte(gitrepo.StatusAdded))
	assert.Equal(t, byte('M'), byte(gitrepo.StatusModified))
	assert.Equal(t, byte('D'), byte(gitrepo.StatusDeleted))
	assert.Equal(t, byte('R'), byte(gitrepo.StatusRenamed))
	assert.Equal(t, byte('C'), byte(gitrepo.StatusCopied))
}
