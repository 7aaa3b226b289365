// Package oidc verifica id_tokens de un proveedor OpenID Connect externo.
//
// KeySet cachea discovery + JWKS (refresh por kid desconocido, single-flight),
// Verifier valida firma, audiencia, issuer y expiración y recién entonces
// construye IdentityClaims, y Client cubre el authorization code flow del login admin.
package oidc
