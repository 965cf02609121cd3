package signing

import "crypto/rsa"

// productPublicKeyPEM is the public half of the issuance key pair baked into
// release builds. Issuance happens offline with license-keygen; only the
// public key ships with the product.
const productPublicKeyPEM = `-----BEGIN PUBLIC KEY-----
MIIBIjANBgkqhkiG9w0BAQEFAAOCAQ8AMIIBCgKCAQEAwv6WaFcW4RPY82FqUNyw
g+8R7wKoCS/8708HvPqg/Lp0UHap4OdBVweCLqNkY3F41LM5ORTkiNUjU0dfwBA/
QVeRI4MeHnE9i6+GA3KBhH47DatXmOLsbmhvMtiFWFxUW2HdPWjdGlabIgIptbhj
AbHrUNIqlhy5QqMjV1FQ4RI1rsOBWaycAzx7qxEHuksRpxpxSQ9vf3+dwyOMe0U7
Ugv+/i9xLdbHcFBptuRRRfArAIkkzxMSZR/WvOzNI2VEzmm88IkfJ6cn1skxmuUn
hvtKXaoXHwnz5CKNeuKNvjFW1JwFX1RDzFzlKhNY8oldv5CNFyRNlJSqgEpJLu9p
PwIDAQAB
-----END PUBLIC KEY-----`

// ProductPublicKey returns the embedded product verification key. It panics
// only if the embedded constant is corrupt, which a release build would catch
// immediately at startup.
func ProductPublicKey() *rsa.PublicKey {
	key, err := ParsePublicKey([]byte(productPublicKeyPEM))
	if err != nil {
		panic("signing: embedded product public key is invalid: " + err.Error())
	}
	return key
}
