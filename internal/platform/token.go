// Package platform はプラットフォーム連携の検証状態機械と統計更新ロジックを提供する。
package platform

import "math/rand"

// verificationCodeLength は検証コードの文字数。
const verificationCodeLength = 6

// verificationCodeAlphabet は検証コードに使用する文字集合。
// 大文字英数字のみとし、プロフィール欄での視認・転記を容易にする。
const verificationCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateVerificationCode は新しい検証コードを生成する。
// 36^6 ≈ 21億通りの空間があり、検証ウィンドウ内での推測には十分。
// 暗号学的強度は要求されない（コードは公開プロフィールに置かれる前提）。
func GenerateVerificationCode() string {
	b := make([]byte, verificationCodeLength)
	for i := range b {
		b[i] = verificationCodeAlphabet[rand.Intn(len(verificationCodeAlphabet))]
	}
	return string(b)
}
