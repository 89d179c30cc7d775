package game_test

import (
	"github.com/myrjola/sleuth/internal/game"
	"github.com/myrjola/sleuth/internal/models"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) //nolint:gochecknoglobals // test fixture

func newTestState() game.State {
	return game.NewState(models.Investigation{ //nolint:exhaustruct // only relevant fields
		ID:     "rue-morgue",
		Title:  "The Murders in the Rue Morgue",
		Status: models.InvestigationStatusActive,
		Characters: []models.Character{
			{ID: "le-bon", Name: "Adolphe Le Bon", Role: models.RoleSuspect, ReputationScore: 50}, //nolint:exhaustruct
			{ID: "sailor", Name: "The Sailor", Role: models.RoleSuspect, ReputationScore: 26, IsCulprit: true}, //nolint:exhaustruct
			{ID: "dupin", Name: "Madame Dupin", Role: models.RoleWitness, ReputationScore: 99}, //nolint:exhaustruct
		},
		Clues: []models.Clue{
			{ID: "hair", Description: "a tuft of tawny hair", Location: "the bedpost"}, //nolint:exhaustruct
		},
	})
}

func TestReduce_AskQuestion(t *testing.T) {
	s := newTestState()
	next, err := game.Reduce(s, game.AskQuestion{CharacterID: "le-bon", Text: "  Where were you?  ", At: now})
	require.NoError(t, err)
	require.Len(t, next.Investigation.Dialog, 1)
	require.Equal(t, "Where were you?", next.Investigation.Dialog[0].Text)
	require.Equal(t, models.SpeakerDetective, next.Investigation.Dialog[0].Speaker)
	require.Empty(t, s.Investigation.Dialog, "input state must not change")

	_, err = game.Reduce(s, game.AskQuestion{CharacterID: "nobody", Text: "Hello?", At: now})
	require.ErrorIs(t, err, game.ErrUnknownCharacter)

	_, err = game.Reduce(s, game.AskQuestion{CharacterID: "le-bon", Text: "   ", At: now})
	require.ErrorIs(t, err, game.ErrEmptyText)
}

func TestReduce_ReceiveResponse(t *testing.T) {
	tests := []struct {
		name           string
		action         game.ReceiveResponse
		wantErr        error
		wantReputation int
		wantAlert      game.AlertKind
		wantLeads      int
	}{
		{
			name: "reputation updates by the given delta",
			action: game.ReceiveResponse{ //nolint:exhaustruct // no leads
				CharacterID: "le-bon", Text: "I was at the bank.", TruthLikelihood: 0.9, ReputationImpact: 3, At: now,
			},
			wantReputation: 53,
		},
		{
			name: "negative delta",
			action: game.ReceiveResponse{ //nolint:exhaustruct // no leads
				CharacterID: "le-bon", Text: "How dare you.", TruthLikelihood: 0.8, ReputationImpact: -5, At: now,
			},
			wantReputation: 45,
		},
		{
			name: "reputation is clamped to maximum",
			action: game.ReceiveResponse{ //nolint:exhaustruct // no leads
				CharacterID: "dupin", Text: "Such a charming detective.", TruthLikelihood: 1, ReputationImpact: 5, At: now,
			},
			wantReputation: 100,
		},
		{
			name: "crossing the hostile threshold raises alert",
			action: game.ReceiveResponse{ //nolint:exhaustruct // no leads
				CharacterID: "sailor", Text: "Leave me alone.", TruthLikelihood: 0.1, ReputationImpact: -2, At: now,
			},
			wantReputation: 24,
			wantAlert:      game.AlertHostile,
		},
		{
			name: "low truth likelihood raises deception alert",
			action: game.ReceiveResponse{ //nolint:exhaustruct // no leads
				CharacterID: "le-bon", Text: "I never met her.", TruthLikelihood: 0.2, ReputationImpact: 0, At: now,
			},
			wantReputation: 50,
			wantAlert:      game.AlertDeception,
		},
		{
			name: "new leads raise lead alert and near-duplicates merge",
			action: game.ReceiveResponse{
				CharacterID:      "le-bon",
				Text:             "I heard a shrill voice speaking a foreign language.",
				TruthLikelihood:  0.7,
				ReputationImpact: 1,
				Leads: []game.NewLead{
					{Text: "A shrill voice spoke a foreign language", Confidence: 0.6},
					{Text: "A shrill voice spoke a foreign language.", Confidence: 0.9},
					{Text: "The window was nailed shut", Confidence: 0.4},
				},
				At: now,
			},
			wantReputation: 51,
			wantAlert:      game.AlertLead,
			wantLeads:      2,
		},
		{
			name: "impact above +5 is rejected",
			action: game.ReceiveResponse{ //nolint:exhaustruct // no leads
				CharacterID: "le-bon", Text: "Yes.", TruthLikelihood: 0.5, ReputationImpact: 6, At: now,
			},
			wantErr: game.ErrInvalidReputationImpact,
		},
		{
			name: "impact below -5 is rejected",
			action: game.ReceiveResponse{ //nolint:exhaustruct // no leads
				CharacterID: "le-bon", Text: "No.", TruthLikelihood: 0.5, ReputationImpact: -6, At: now,
			},
			wantErr: game.ErrInvalidReputationImpact,
		},
		{
			name: "truth likelihood outside range is rejected",
			action: game.ReceiveResponse{ //nolint:exhaustruct // no leads
				CharacterID: "le-bon", Text: "Maybe.", TruthLikelihood: 1.5, ReputationImpact: 0, At: now,
			},
			wantErr: game.ErrInvalidScore,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestState()
			next, err := game.Reduce(s, tt.action)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Equal(t, s, next, "state must be unchanged on error")
				return
			}
			require.NoError(t, err)
			reputation, ok := next.Reputation(tt.action.CharacterID)
			require.True(t, ok)
			require.Equal(t, tt.wantReputation, reputation)
			if tt.wantAlert == "" {
				require.Nil(t, next.Alert)
			} else {
				require.NotNil(t, next.Alert)
				require.Equal(t, tt.wantAlert, next.Alert.Kind)
			}
			require.Len(t, next.Investigation.Leads, tt.wantLeads)
			for _, lead := range next.Investigation.Leads {
				if lead.Text == "A shrill voice spoke a foreign language" {
					require.InDelta(t, 0.9, lead.Confidence, 0.0001, "merged lead keeps higher confidence")
				}
			}
			require.Len(t, next.Investigation.Dialog, 1)
			require.Equal(t, tt.action.ReputationImpact, next.Investigation.Dialog[0].ReputationImpact)
		})
	}
}

func TestReduce_dialogOrder(t *testing.T) {
	s := newTestState()
	var err error
	s, err = game.Reduce(s, game.AskQuestion{CharacterID: "le-bon", Text: "Who are you?", At: now})
	require.NoError(t, err)
	s, err = game.Reduce(s, game.ReceiveResponse{ //nolint:exhaustruct // no leads
		CharacterID: "le-bon", Text: "A bank clerk.", TruthLikelihood: 1, At: now,
	})
	require.NoError(t, err)
	s, err = game.Reduce(s, game.AskQuestion{CharacterID: "dupin", Text: "And you?", At: now})
	require.NoError(t, err)
	for i, entry := range s.Investigation.Dialog {
		require.Equal(t, int64(i), entry.Order)
	}
	require.Len(t, s.Investigation.DialogWith("le-bon"), 2)
}

func TestReduce_AdjustReputation(t *testing.T) {
	s := newTestState()
	next, err := game.Reduce(s, game.AdjustReputation{CharacterID: "le-bon", Delta: -4})
	require.NoError(t, err)
	reputation, _ := next.Reputation("le-bon")
	require.Equal(t, 46, reputation)

	_, err = game.Reduce(s, game.AdjustReputation{CharacterID: "le-bon", Delta: 10})
	require.ErrorIs(t, err, game.ErrInvalidReputationImpact)

	next, err = game.Reduce(s, game.AdjustReputation{CharacterID: "sailor", Delta: -5})
	require.NoError(t, err)
	require.Equal(t, game.AlertHostile, next.Alert.Kind)
}

func TestReduce_DiscoverClue(t *testing.T) {
	s := newTestState()
	next, err := game.Reduce(s, game.DiscoverClue{ClueID: "hair", Confidence: 0.7, At: now})
	require.NoError(t, err)
	require.True(t, next.Investigation.Clues[0].Discovered)
	require.False(t, s.Investigation.Clues[0].Discovered, "input state must not change")
	require.Len(t, next.Investigation.Leads, 1)
	require.Equal(t, "hair", next.Investigation.Leads[0].SourceClueID)
	require.Equal(t, game.AlertLead, next.Alert.Kind)

	// Discovering again is a no-op.
	again, err := game.Reduce(next, game.DiscoverClue{ClueID: "hair", Confidence: 0.7, At: now})
	require.NoError(t, err)
	require.Len(t, again.Investigation.Leads, 1)
	require.Nil(t, again.Alert)

	_, err = game.Reduce(s, game.DiscoverClue{ClueID: "nope", Confidence: 0.7, At: now})
	require.ErrorIs(t, err, game.ErrUnknownClue)
}

func TestReduce_Accuse(t *testing.T) {
	t.Run("correct accusation solves the case", func(t *testing.T) {
		next, err := game.Reduce(newTestState(), game.Accuse{CharacterID: "sailor", At: now})
		require.NoError(t, err)
		require.Equal(t, models.InvestigationStatusSolved, next.Investigation.Status)
		require.True(t, next.Investigation.Accusation.Correct)
		require.Equal(t, game.AlertVerdict, next.Alert.Kind)
	})

	t.Run("wrong accusation fails the case", func(t *testing.T) {
		next, err := game.Reduce(newTestState(), game.Accuse{CharacterID: "le-bon", At: now})
		require.NoError(t, err)
		require.Equal(t, models.InvestigationStatusFailed, next.Investigation.Status)
		require.False(t, next.Investigation.Accusation.Correct)
		require.Contains(t, next.Alert.Message, "The Sailor")
	})

	t.Run("accusation can only be made once", func(t *testing.T) {
		next, err := game.Reduce(newTestState(), game.Accuse{CharacterID: "le-bon", At: now})
		require.NoError(t, err)
		_, err = game.Reduce(next, game.Accuse{CharacterID: "sailor", At: now})
		require.ErrorIs(t, err, game.ErrAlreadyAccused)
	})

	t.Run("closed investigation rejects other actions", func(t *testing.T) {
		next, err := game.Reduce(newTestState(), game.Accuse{CharacterID: "sailor", At: now})
		require.NoError(t, err)
		_, err = game.Reduce(next, game.AskQuestion{CharacterID: "le-bon", Text: "Anything else?", At: now})
		require.ErrorIs(t, err, game.ErrInvestigationClosed)
		dismissed, err := game.Reduce(next, game.DismissAlert{})
		require.NoError(t, err)
		require.Nil(t, dismissed.Alert)
	})

	t.Run("unknown character", func(t *testing.T) {
		_, err := game.Reduce(newTestState(), game.Accuse{CharacterID: "nobody", At: now})
		require.ErrorIs(t, err, game.ErrUnknownCharacter)
	})
}

func TestReduce_notReady(t *testing.T) {
	s := newTestState()
	s.Investigation.Status = models.InvestigationStatusGenerating
	_, err := game.Reduce(s, game.AskQuestion{CharacterID: "le-bon", Text: "Hello?", At: now})
	require.ErrorIs(t, err, game.ErrNotReady)
}

func TestReduce_AddLead(t *testing.T) {
	next, err := game.Reduce(newTestState(), game.AddLead{Text: "The orangutan escaped", Confidence: 0.5, At: now})
	require.NoError(t, err)
	require.Len(t, next.Investigation.Leads, 1)

	_, err = game.Reduce(newTestState(), game.AddLead{Text: "Bad", Confidence: -0.1, At: now})
	require.ErrorIs(t, err, game.ErrInvalidScore)
}

func TestFindCharacterByName(t *testing.T) {
	characters := newTestState().Investigation.Characters
	family := []models.Character{
		{ID: "edmund", Name: "Lord Edmund Blackwood", Role: models.RoleVictim},    //nolint:exhaustruct // test
		{ID: "margaret", Name: "Lady Margaret Blackwood", Role: models.RoleSuspect}, //nolint:exhaustruct // test
		{ID: "crane", Name: "Dr. Helena Crane", Role: models.RoleSuspect},          //nolint:exhaustruct // test
	}
	tests := []struct {
		name       string
		characters []models.Character
		query      string
		wantID     string
		wantErr    error
	}{
		{name: "exact", characters: characters, query: "Adolphe Le Bon", wantID: "le-bon"},
		{name: "case insensitive typo", characters: characters, query: "adolph le bon", wantID: "le-bon"},
		{name: "surname", characters: characters, query: "Dupin", wantID: "dupin"},
		{name: "no match", characters: characters, query: "Inspector Lestrade", wantErr: game.ErrUnknownCharacter},
		{name: "shared surname", characters: family, query: "Blackwood", wantErr: game.ErrAmbiguousName},
		{name: "shared surname with typo", characters: family, query: "blackwod", wantErr: game.ErrAmbiguousName},
		{name: "first name tells them apart", characters: family, query: "Margaret Blackwood", wantID: "margaret"},
		{name: "given name", characters: family, query: "Edmund", wantID: "edmund"},
		{name: "unique surname", characters: family, query: "Crane", wantID: "crane"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := game.FindCharacterByName(tt.characters, tt.query)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Nil(t, c)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantID, c.ID)
		})
	}
}

func TestSimilarity(t *testing.T) {
	require.InDelta(t, 1.0, game.Similarity("Clue", "clue"), 0.0001)
	require.InDelta(t, 1.0, game.Similarity("", ""), 0.0001)
	require.Less(t, game.Similarity("knife", "poison"), 0.5)
}
