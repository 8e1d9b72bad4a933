package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	gocache "github.com/patrickmn/go-cache"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/postboard/social-front/internal/crypto"
	"github.com/postboard/social-front/internal/log"
)

// FirestoreStorage persists social grants in Google Cloud Firestore. OAuth
// state is short-lived and kept in a local TTL cache; a connect flow always
// initiates and completes on the same instance (the popup follows the
// redirect chain), so state never needs to be shared.
type FirestoreStorage struct {
	client     *firestore.Client
	collection string
	encryptor  crypto.Encryptor

	stateMu    sync.Mutex
	states     *gocache.Cache
	stateIndex *gocache.Cache
}

// Ensure FirestoreStorage implements the Storage interface
var _ Storage = (*FirestoreStorage)(nil)

// grantDoc is the Firestore representation of a SocialGrant. Token fields
// are AES-256-GCM encrypted.
type grantDoc struct {
	UserID         string    `firestore:"user_id"`
	Platform       string    `firestore:"platform"`
	PlatformUserID string    `firestore:"platform_user_id"`
	AccessToken    string    `firestore:"access_token"`
	RefreshToken   string    `firestore:"refresh_token,omitempty"`
	Expiry         time.Time `firestore:"expiry,omitempty"`
	ConnectedAt    time.Time `firestore:"connected_at"`
	UpdatedAt      time.Time `firestore:"updated_at"`
}

// NewFirestoreStorage creates a Firestore-backed storage instance
func NewFirestoreStorage(ctx context.Context, projectID, database, collection string, encryptor crypto.Encryptor) (*FirestoreStorage, error) {
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}
	if collection == "" {
		collection = "social_front_grants"
	}

	var client *firestore.Client
	var err error

	// Firestore client with custom database
	if database != "" && database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &FirestoreStorage{
		client:     client,
		collection: collection,
		encryptor:  encryptor,
		states:     gocache.New(StateTTL, StateTTL),
		stateIndex: gocache.New(StateTTL, StateTTL),
	}, nil
}

// grantDocID builds the document ID for a (user, platform) pair
func grantDocID(userID, platform string) string {
	return userID + "__" + platform
}

func (s *FirestoreStorage) toDoc(grant *SocialGrant) (*grantDoc, error) {
	encryptedAccess, err := s.encryptor.Encrypt(grant.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("encrypting access token: %w", err)
	}

	doc := &grantDoc{
		UserID:         grant.UserID,
		Platform:       grant.Platform,
		PlatformUserID: grant.PlatformUserID,
		AccessToken:    encryptedAccess,
		Expiry:         grant.Expiry,
		ConnectedAt:    grant.ConnectedAt,
		UpdatedAt:      grant.UpdatedAt,
	}
	if grant.RefreshToken != "" {
		encryptedRefresh, err := s.encryptor.Encrypt(grant.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("encrypting refresh token: %w", err)
		}
		doc.RefreshToken = encryptedRefresh
	}
	return doc, nil
}

func (s *FirestoreStorage) fromDoc(doc *grantDoc) (*SocialGrant, error) {
	accessToken, err := s.encryptor.Decrypt(doc.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("decrypting access token: %w", err)
	}

	grant := &SocialGrant{
		UserID:         doc.UserID,
		Platform:       doc.Platform,
		PlatformUserID: doc.PlatformUserID,
		AccessToken:    accessToken,
		Expiry:         doc.Expiry,
		ConnectedAt:    doc.ConnectedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
	if doc.RefreshToken != "" {
		refreshToken, err := s.encryptor.Decrypt(doc.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("decrypting refresh token: %w", err)
		}
		grant.RefreshToken = refreshToken
	}
	return grant, nil
}

// UpsertGrant stores or replaces the grant for a (user, platform) pair
func (s *FirestoreStorage) UpsertGrant(ctx context.Context, grant *SocialGrant) error {
	doc, err := s.toDoc(grant)
	if err != nil {
		return err
	}

	docID := grantDocID(grant.UserID, grant.Platform)
	if _, err := s.client.Collection(s.collection).Doc(docID).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to store grant in Firestore: %w", err)
	}
	return nil
}

// GetGrant retrieves the grant for a (user, platform) pair
func (s *FirestoreStorage) GetGrant(ctx context.Context, userID, platform string) (*SocialGrant, error) {
	docID := grantDocID(userID, platform)
	snap, err := s.client.Collection(s.collection).Doc(docID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrGrantNotFound
		}
		return nil, fmt.Errorf("failed to get grant from Firestore: %w", err)
	}

	var doc grantDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal grant: %w", err)
	}
	return s.fromDoc(&doc)
}

// DeleteGrant removes the grant for a (user, platform) pair
func (s *FirestoreStorage) DeleteGrant(ctx context.Context, userID, platform string) error {
	docID := grantDocID(userID, platform)
	if _, err := s.client.Collection(s.collection).Doc(docID).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete grant from Firestore: %w", err)
	}
	return nil
}

// ListGrants returns all grants belonging to a user
func (s *FirestoreStorage) ListGrants(ctx context.Context, userID string) ([]*SocialGrant, error) {
	iter := s.client.Collection(s.collection).Where("user_id", "==", userID).Documents(ctx)
	defer iter.Stop()

	var grants []*SocialGrant
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate grants: %w", err)
		}

		var doc grantDoc
		if err := snap.DataTo(&doc); err != nil {
			// Log error but continue with other grants
			log.LogError("Failed to unmarshal grant (doc: %s): %v", snap.Ref.ID, err)
			continue
		}
		grant, err := s.fromDoc(&doc)
		if err != nil {
			log.LogError("Failed to decrypt grant (doc: %s): %v", snap.Ref.ID, err)
			continue
		}
		grants = append(grants, grant)
	}
	return grants, nil
}

// StoreState stores a one-time OAuth state in the local TTL cache
func (s *FirestoreStorage) StoreState(_ context.Context, nonce string, state *AuthState) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	idxKey := grantKey(state.UserID, state.Platform)
	if prev, ok := s.stateIndex.Get(idxKey); ok {
		s.states.Delete(prev.(string))
	}
	s.states.Set(nonce, state, StateTTL)
	s.stateIndex.Set(idxKey, nonce, StateTTL)
	return nil
}

// ConsumeState retrieves and deletes a state in one step
func (s *FirestoreStorage) ConsumeState(_ context.Context, nonce string) (*AuthState, error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	value, ok := s.states.Get(nonce)
	if !ok {
		return nil, ErrStateNotFound
	}
	s.states.Delete(nonce)

	state := value.(*AuthState)
	s.stateIndex.Delete(grantKey(state.UserID, state.Platform))
	return state, nil
}

// Close closes the Firestore client
func (s *FirestoreStorage) Close() error {
	return s.client.Close()
}
