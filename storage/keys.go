package storage

// Keys persisted by the application.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyEditionMode  = "editionMode"
	// KeyCurrentLanguage caches the language the user last chose.
	KeyCurrentLanguage = "currentLanguage"

	// KeySelectedBusiness lives in the tab store.
	KeySelectedBusiness = "selectedBusinessId"
	// KeySelectedBusinessPrefix is suffixed with the user's email in the durable store.
	KeySelectedBusinessPrefix = KeySelectedBusiness + "_"
)

// SelectedBusinessKey is the durable selection key of the user with email.
func SelectedBusinessKey(email string) string {
	return KeySelectedBusinessPrefix + email
}
