package githubrepos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v72/github"
	"go.uber.org/zap"
)

const (
	// DefaultAPIBaseURLConstant is the public GitHub REST endpoint.
	DefaultAPIBaseURLConstant = "https://api.github.com/"
	// PageSizeConstant is the number of repositories requested per page.
	PageSizeConstant = 100

	repositoryTypeOwnerConstant             = "owner"
	firstPageNumberConstant                 = 1
	maximumErrorBodyBytesConstant           = 64 * 1024
	urlPathSeparatorConstant                = "/"
	tokenMissingMessageConstant             = "github token not configured"
	ownerMissingMessageConstant             = "repository owner not configured"
	invalidBaseURLErrorTemplateConstant     = "invalid GitHub API base URL %q: %w"
	listingErrorTemplateConstant            = "listing repositories for %s failed on page %d"
	listingStatusSuffixTemplateConstant     = " (status %d)"
	listingMessageSuffixTemplateConstant    = ": %s"
	listingPageLogMessageConstant           = "fetched repository page"
	listingCompletedLogMessageConstant      = "repository listing completed"
	logFieldOwnerConstant                   = "owner"
	logFieldPrefixConstant                  = "prefix"
	logFieldPageConstant                    = "page"
	logFieldPageSizeConstant                = "page_size"
	logFieldMatchedRepositoriesConstant     = "matched_repositories"
	logFieldAccumulatedRepositoriesConstant = "accumulated_repositories"
)

var (
	// ErrTokenNotConfigured indicates the lister was constructed without an authentication token.
	ErrTokenNotConfigured = errors.New(tokenMissingMessageConstant)
	// ErrOwnerNotConfigured indicates an empty owner account.
	ErrOwnerNotConfigured = errors.New(ownerMissingMessageConstant)
)

// RepositoryDescriptor identifies a remote repository selected for bootstrapping.
type RepositoryDescriptor struct {
	Name        string
	SSHCloneURL string
}

// ListingError reports a failed page request. It aborts the whole listing.
type ListingError struct {
	Owner      string
	Page       int
	StatusCode int
	Body       string
	Cause      error
}

// Error describes the listing failure.
func (listingError ListingError) Error() string {
	message := fmt.Sprintf(listingErrorTemplateConstant, listingError.Owner, listingError.Page)
	if listingError.StatusCode != 0 {
		message += fmt.Sprintf(listingStatusSuffixTemplateConstant, listingError.StatusCode)
	}
	detail := strings.TrimSpace(listingError.Body)
	if len(detail) == 0 && listingError.Cause != nil {
		detail = listingError.Cause.Error()
	}
	if len(detail) > 0 {
		message += fmt.Sprintf(listingMessageSuffixTemplateConstant, detail)
	}
	return message
}

// Unwrap exposes the underlying client error.
func (listingError ListingError) Unwrap() error {
	return listingError.Cause
}

// ClientConfiguration describes how to reach the GitHub API.
type ClientConfiguration struct {
	APIBaseURL string
	Token      string
	HTTPClient *http.Client
}

// Lister pages through an account's repositories.
type Lister struct {
	logger *zap.Logger
	client *github.Client
}

// NewLister constructs a Lister authenticated with a bearer token.
func NewLister(logger *zap.Logger, configuration ClientConfiguration) (*Lister, error) {
	token := strings.TrimSpace(configuration.Token)
	if len(token) == 0 {
		return nil, ErrTokenNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := github.NewClient(configuration.HTTPClient).WithAuthToken(token)

	baseURLValue := strings.TrimSpace(configuration.APIBaseURL)
	if len(baseURLValue) == 0 {
		baseURLValue = DefaultAPIBaseURLConstant
	}
	if !strings.HasSuffix(baseURLValue, urlPathSeparatorConstant) {
		baseURLValue += urlPathSeparatorConstant
	}
	baseURL, parseError := url.Parse(baseURLValue)
	if parseError != nil {
		return nil, fmt.Errorf(invalidBaseURLErrorTemplateConstant, baseURLValue, parseError)
	}
	client.BaseURL = baseURL

	return &Lister{logger: logger, client: client}, nil
}

// ListRepositories returns every repository owned by owner whose name starts with prefix.
// Pages are requested until one comes back empty; any failing page aborts the listing.
func (lister *Lister) ListRepositories(executionContext context.Context, owner string, prefix string) ([]RepositoryDescriptor, error) {
	trimmedOwner := strings.TrimSpace(owner)
	if len(trimmedOwner) == 0 {
		return nil, ErrOwnerNotConfigured
	}

	descriptors := []RepositoryDescriptor{}
	for pageNumber := firstPageNumberConstant; ; pageNumber++ {
		listOptions := &github.RepositoryListByUserOptions{
			Type: repositoryTypeOwnerConstant,
			ListOptions: github.ListOptions{
				Page:    pageNumber,
				PerPage: PageSizeConstant,
			},
		}

		repositories, response, listError := lister.client.Repositories.ListByUser(executionContext, trimmedOwner, listOptions)
		if listError != nil {
			return nil, newListingError(trimmedOwner, pageNumber, response, listError)
		}
		if response != nil && response.StatusCode != http.StatusOK {
			return nil, newListingError(trimmedOwner, pageNumber, response, nil)
		}

		if len(repositories) == 0 {
			break
		}

		matchedCount := 0
		for _, repository := range repositories {
			if repository == nil || !strings.HasPrefix(repository.GetName(), prefix) {
				continue
			}
			descriptors = append(descriptors, RepositoryDescriptor{
				Name:        repository.GetName(),
				SSHCloneURL: repository.GetSSHURL(),
			})
			matchedCount++
		}

		lister.logger.Debug(
			listingPageLogMessageConstant,
			zap.String(logFieldOwnerConstant, trimmedOwner),
			zap.Int(logFieldPageConstant, pageNumber),
			zap.Int(logFieldPageSizeConstant, len(repositories)),
			zap.Int(logFieldMatchedRepositoriesConstant, matchedCount),
		)
	}

	lister.logger.Info(
		listingCompletedLogMessageConstant,
		zap.String(logFieldOwnerConstant, trimmedOwner),
		zap.String(logFieldPrefixConstant, prefix),
		zap.Int(logFieldAccumulatedRepositoriesConstant, len(descriptors)),
	)

	return descriptors, nil
}

func newListingError(owner string, pageNumber int, response *github.Response, cause error) ListingError {
	listingError := ListingError{Owner: owner, Page: pageNumber, Cause: cause}

	var httpResponse *http.Response
	if response != nil {
		httpResponse = response.Response
	}

	var errorResponse *github.ErrorResponse
	if errors.As(cause, &errorResponse) {
		listingError.Body = strings.TrimSpace(errorResponse.Message)
		if errorResponse.Response != nil {
			httpResponse = errorResponse.Response
		}
	}

	if httpResponse != nil {
		listingError.StatusCode = httpResponse.StatusCode
		if len(listingError.Body) == 0 {
			listingError.Body = readResponseBody(httpResponse)
		}
	}

	return listingError
}

// readResponseBody returns the raw error body, which the client restores after decoding.
func readResponseBody(httpResponse *http.Response) string {
	if httpResponse.Body == nil {
		return ""
	}
	bodyContent, readError := io.ReadAll(io.LimitReader(httpResponse.Body, maximumErrorBodyBytesConstant))
	if readError != nil {
		return ""
	}
	return strings.TrimSpace(string(bodyContent))
}
