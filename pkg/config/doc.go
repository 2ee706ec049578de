// Package config は各サービスの環境変数ベースの設定を提供する。
//
// 環境変数が未設定の場合はローカル開発用のデフォルト値を使用する。
// 各サービスのエントリポイントがLoadで設定を読み込み、
// サーバー初期化時に渡す。
package config
